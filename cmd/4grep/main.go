package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("4grep")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			log.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "4grep",
		Description: "Content-addressed n-gram index store for fast substring pre-filtering.",
		Before: func(c *cli.Context) error {
			if os.Getenv("GOLOG_LOG_LEVEL") == "" && c.Bool("verbose") {
				_ = logging.SetLogLevel("4grep", "DEBUG")
				_ = logging.SetLogLevel("4grep/store", "DEBUG")
				_ = logging.SetLogLevel("4grep/orchestrator", "DEBUG")
			}
			return nil
		},
		Flags: []cli.Flag{
			FlagRoot,
			FlagVerbose,
		},
		Commands: []*cli.Command{
			newCmd_GenerateBitmap(),
			newCmd_Pack(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
