// Package wit implements the "wit" subcommand: parse a WIT+ source
// file (or OCI artifact) and print its resolved structure.
package wit

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colinrozzi/composite/cmd/composite/internal/dump"
	"github.com/colinrozzi/composite/internal/witcli"
)

// Command is the CLI command for wit.
var Command = &cli.Command{
	Name:      "wit",
	Usage:     "parse a WIT+ package and print its resolved structure",
	ArgsUsage: "[path]",
	Action:    action,
}

func action(ctx context.Context, cmd *cli.Command) error {
	path, err := witcli.LoadPath(cmd.Args().Slice()...)
	if err != nil {
		return err
	}
	res, err := witcli.LoadWIT(ctx, path)
	if err != nil {
		return err
	}
	dump.Resolve(cmd.Writer, res)
	return nil
}
