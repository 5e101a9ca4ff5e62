package main

import "github.com/urfave/cli/v2"

var FlagRoot = &cli.StringFlag{
	Name:    "root",
	Usage:   "index store root directory (default: resolved per the standard search order)",
	EnvVars: []string{"FOURGRAM_ROOT"},
}

var FlagVerbose = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "enable debug logging",
}

func resolveRoot(c *cli.Context) (string, error) {
	if root := c.String("root"); root != "" {
		return root, nil
	}
	return resolveDefaultRoot()
}
