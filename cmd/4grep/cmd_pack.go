package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/purestorage/4grep/store"
)

func newCmd_Pack() *cli.Command {
	return &cli.Command{
		Name:  "pack",
		Usage: "pack every month bucket under the index root",
		Flags: []cli.Flag{
			FlagRoot,
		},
		Action: func(c *cli.Context) error {
			root, err := resolveRoot(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return packAllBuckets(root)
		},
	}
}

func packAllBuckets(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		bucket := filepath.Join(root, e.Name())
		log.Infof("pack: %s", bucket)
		if err := store.PackBucket(bucket); err != nil {
			log.Errorf("pack: %s: %v", bucket, err)
		}
	}
	return nil
}
