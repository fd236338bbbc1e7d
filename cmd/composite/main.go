package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colinrozzi/composite/cmd/composite/cmd/compose"
	"github.com/colinrozzi/composite/cmd/composite/cmd/diff"
	"github.com/colinrozzi/composite/cmd/composite/cmd/hash"
	"github.com/colinrozzi/composite/cmd/composite/cmd/run"
	"github.com/colinrozzi/composite/cmd/composite/cmd/wit"
	"github.com/colinrozzi/composite/internal/witcli"
)

// Command is the top-level CLI command. The -v/--verbose and --debug
// flags are global: the compose and run subcommands read them back off
// the root via cmd.Root() to build their own logger rather than
// threading a value through Before.
var Command = &cli.Command{
	Name:  "composite",
	Usage: "inspect, hash, diff, compose, and run Composite WebAssembly packages",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "enable info-level logging",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug-level logging",
		},
	},
	Commands: []*cli.Command{
		wit.Command,
		hash.Command,
		diff.Command,
		compose.Command,
		run.Command,
	},
	Version: witcli.Version(),
}

func main() {
	err := Command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}
