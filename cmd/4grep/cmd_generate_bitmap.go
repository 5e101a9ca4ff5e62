package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/purestorage/4grep/errkind"
	"github.com/purestorage/4grep/ngram"
)

func newCmd_GenerateBitmap() *cli.Command {
	return &cli.Command{
		Name:      "generate-bitmap",
		Usage:     "scan a file, or stdin when piped, and write its raw n-gram bitmap to stdout",
		ArgsUsage: "[file | -]",
		Action: func(c *cli.Context) error {
			arg := c.Args().First()

			var src io.Reader
			switch {
			case arg == "-":
				src = os.Stdin
			case arg != "":
				f, err := os.Open(arg)
				if err != nil {
					return cli.Exit(fmt.Sprintf("open %s: %v", arg, err), 1)
				}
				defer f.Close()
				src = f
			case !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()):
				src = os.Stdin
			default:
				return cli.Exit(fmt.Sprintf("usage:\n  %s <file>\n  echo <string> | %s", c.App.Name, c.App.Name), 1)
			}

			bm := ngram.New()
			if err := bm.ApplyStream(src); err != nil {
				if errors.Is(err, errkind.Truncated) {
					return cli.Exit("gzip stream truncated", 1)
				}
				return cli.Exit(err.Error(), 1)
			}

			if _, err := os.Stdout.Write(bm.Bytes()); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
