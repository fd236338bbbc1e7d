// Package diff implements the "diff" subcommand: compare two WIT+
// packages interface by interface, reporting which interfaces changed
// hash and, for each one, a line diff of their structural dumps.
package diff

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/urfave/cli/v3"

	"github.com/colinrozzi/composite/cmd/composite/internal/dump"
	"github.com/colinrozzi/composite/internal/witcli"
	"github.com/colinrozzi/composite/wit"
	"github.com/colinrozzi/composite/wit/hash"
)

// Command is the CLI command for diff.
var Command = &cli.Command{
	Name:      "diff",
	Usage:     "compare two WIT+ packages interface by interface",
	ArgsUsage: "<old-path> <new-path>",
	Action:    action,
}

func action(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 2 {
		return fmt.Errorf("diff: expected 2 path arguments, got %d", len(args))
	}
	oldRes, err := witcli.LoadWIT(ctx, args[0])
	if err != nil {
		return fmt.Errorf("diff: loading %s: %w", args[0], err)
	}
	newRes, err := witcli.LoadWIT(ctx, args[1])
	if err != nil {
		return fmt.Errorf("diff: loading %s: %w", args[1], err)
	}

	oldByName := ifaceIndex(oldRes)
	newByName := ifaceIndex(newRes)

	changed := 0
	for name, oldIface := range oldByName {
		newIface, ok := newByName[name]
		if !ok {
			fmt.Fprintf(cmd.Writer, "- interface %s removed\n", name)
			changed++
			continue
		}
		if hash.Interface(oldIface).Equal(hash.Interface(newIface)) {
			continue
		}
		changed++
		fmt.Fprintf(cmd.Writer, "~ interface %s changed\n", name)
		printInterfaceDiff(cmd, oldIface, newIface)
	}
	for name := range newByName {
		if _, ok := oldByName[name]; !ok {
			fmt.Fprintf(cmd.Writer, "+ interface %s added\n", name)
			changed++
		}
	}
	if changed == 0 {
		fmt.Fprintln(cmd.Writer, "no interface hash changes")
	}
	return nil
}

func printInterfaceDiff(cmd *cli.Command, oldIface, newIface *wit.Interface) {
	var oldBuf, newBuf bytes.Buffer
	dump.Resolve(&oldBuf, &wit.Resolve{Interfaces: []*wit.Interface{oldIface}})
	dump.Resolve(&newBuf, &wit.Resolve{Interfaces: []*wit.Interface{newIface}})

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldBuf.String(), newBuf.String(), false)
	fmt.Fprintln(cmd.Writer, dmp.DiffPrettyText(diffs))
}

func ifaceIndex(r *wit.Resolve) map[string]*wit.Interface {
	out := make(map[string]*wit.Interface, len(r.Interfaces))
	for _, iface := range r.Interfaces {
		out[ifaceName(iface)] = iface
	}
	return out
}

func ifaceName(iface *wit.Interface) string {
	if iface.Name == nil {
		return "<anonymous>"
	}
	return *iface.Name
}
