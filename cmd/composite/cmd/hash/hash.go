// Package hash implements the "hash" subcommand: parse a WIT+ package
// and print the structural hash of every interface and type binding.
package hash

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colinrozzi/composite/internal/witcli"
	"github.com/colinrozzi/composite/wit"
	"github.com/colinrozzi/composite/wit/hash"
)

// Command is the CLI command for hash.
var Command = &cli.Command{
	Name:      "hash",
	Usage:     "print the structural hash of every interface in a WIT+ package",
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
	for _, iface := range res.Interfaces {
		fmt.Fprintf(cmd.Writer, "%s  interface %s\n", hash.Interface(iface), ifaceName(iface))
		for name, td := range iface.TypeDefs.All() {
			h := hash.Type(&wit.Named{Name: name, Def: td})
			fmt.Fprintf(cmd.Writer, "  %s  type %s\n", h, name)
		}
		for name, fn := range iface.Functions.All() {
			fmt.Fprintf(cmd.Writer, "  %s  func %s\n", hash.Function(fn), name)
		}
	}
	return nil
}

func ifaceName(iface *wit.Interface) string {
	if iface.Name == nil {
		return "<anonymous>"
	}
	return *iface.Name
}
