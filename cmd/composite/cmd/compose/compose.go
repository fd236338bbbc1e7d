// Package compose implements the "compose" subcommand: read a wiring
// manifest describing a set of core-wasm modules and the interfaces
// wired between them, and write the single composed module it
// produces.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/colinrozzi/composite/compose"
	"github.com/colinrozzi/composite/internal/witcli"
)

// Command is the CLI command for compose.
var Command = &cli.Command{
	Name:      "compose",
	Usage:     "statically link a set of core-wasm modules per a wiring manifest",
	ArgsUsage: "<manifest.json>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Value:    "composed.wasm",
			OnlyOnce: true,
			Usage:    "output path for the composed module",
		},
	},
	Action: action,
}

// manifest is the on-disk shape of a wiring manifest: the modules to
// merge, the wires connecting their imports to each other's exports,
// and the exports the composed module should expose.
//
// Module paths are resolved relative to the manifest's own directory.
type manifest struct {
	Modules []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"modules"`
	Wires []struct {
		Consumer        string `json:"consumer"`
		ImportInterface string `json:"importInterface"`
		ImportName      string `json:"importName"`
		Provider        string `json:"provider"`
		ExportName      string `json:"exportName"`
	} `json:"wires"`
	Exports []struct {
		PublicName         string `json:"publicName"`
		SourceModule       string `json:"sourceModule"`
		InternalExportName string `json:"internalExportName"`
	} `json:"exports"`
}

func action(ctx context.Context, cmd *cli.Command) error {
	root := cmd.Root()
	logger := witcli.Logger(root.Bool("verbose"), root.Bool("debug"))

	args := cmd.Args().Slice()
	if len(args) != 1 {
		return fmt.Errorf("compose: expected exactly one manifest path argument, got %d", len(args))
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("compose: reading manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("compose: parsing manifest: %w", err)
	}
	logger.Infof("loaded manifest %s: %d modules, %d wires, %d exports", args[0], len(m.Modules), len(m.Wires), len(m.Exports))

	modules := make([]compose.NamedModule, len(m.Modules))
	for i, mod := range m.Modules {
		path := mod.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(args[0]), path)
		}
		wasm, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("compose: reading module %q: %w", mod.Name, err)
		}
		logger.Debugf("read module %q from %s (%d bytes)", mod.Name, path, len(wasm))
		modules[i] = compose.NamedModule{Name: mod.Name, Wasm: wasm}
	}

	wires := make([]compose.Wire, len(m.Wires))
	for i, w := range m.Wires {
		wires[i] = compose.Wire{
			Consumer:        w.Consumer,
			ImportInterface: w.ImportInterface,
			ImportName:      w.ImportName,
			Provider:        w.Provider,
			ExportName:      w.ExportName,
		}
	}

	exports := make([]compose.ExportDecl, len(m.Exports))
	for i, e := range m.Exports {
		exports[i] = compose.ExportDecl{
			PublicName:         e.PublicName,
			SourceModule:       e.SourceModule,
			InternalExportName: e.InternalExportName,
		}
	}

	merged, err := compose.Compose(modules, wires, exports)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	out := cmd.String("out")
	if err := os.WriteFile(out, merged, 0o644); err != nil {
		return fmt.Errorf("compose: writing %s: %w", out, err)
	}
	fmt.Fprintf(cmd.Writer, "wrote %s (%d bytes)\n", out, len(merged))
	return nil
}
