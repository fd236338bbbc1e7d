// Package run implements the "run" subcommand: instantiate a
// core-wasm module (the output of compose, or any module built to the
// §4 ABI) and invoke one of its exports with a single scalar argument.
package run

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/colinrozzi/composite/cgrf"
	wazeroadapter "github.com/colinrozzi/composite/engine/wazero"
	"github.com/colinrozzi/composite/internal/witcli"
	"github.com/colinrozzi/composite/runtime"
	"github.com/colinrozzi/composite/wit"
)

// Command is the CLI command for run.
var Command = &cli.Command{
	Name:      "run",
	Usage:     "call one exported function of a composed module",
	ArgsUsage: "<module.wasm> <function>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Value:    "s64",
			OnlyOnce: true,
			Usage:    "primitive WIT+ type of the argument and result",
		},
		&cli.StringFlag{
			Name:     "arg",
			Value:    "0",
			OnlyOnce: true,
			Usage:    "argument value",
		},
	},
	Action: action,
}

func action(ctx context.Context, cmd *cli.Command) error {
	root := cmd.Root()
	logger := witcli.Logger(root.Bool("verbose"), root.Bool("debug"))

	args := cmd.Args().Slice()
	if len(args) != 2 {
		return fmt.Errorf("run: expected <module.wasm> <function>, got %d arguments", len(args))
	}
	wasmPath, fnName := args[0], args[1]

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return fmt.Errorf("run: reading %s: %w", wasmPath, err)
	}
	logger.Debugf("read %s (%d bytes)", wasmPath, len(wasmBytes))

	typ, err := wit.ParseType(cmd.String("type"))
	if err != nil {
		return fmt.Errorf("run: --type: %w", err)
	}
	in, err := parseArg(typ, cmd.String("arg"))
	if err != nil {
		return fmt.Errorf("run: --arg: %w", err)
	}

	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	inst, err := runtime.New(ctx, e, wasmBytes)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer inst.Close(ctx)

	logger.Infof("calling %s(%s: %s)", fnName, cmd.String("type"), cmd.String("arg"))
	out, err := inst.CallWithValue(ctx, fnName, in, typ, runtime.WithResultType(typ))
	if err != nil {
		for _, line := range inst.Logs() {
			fmt.Fprintln(cmd.ErrWriter, "guest:", line)
		}
		return fmt.Errorf("run: %w", err)
	}

	fmt.Fprintln(cmd.Writer, formatValue(out))
	for _, line := range inst.Logs() {
		fmt.Fprintln(cmd.ErrWriter, "guest:", line)
	}
	return nil
}

func parseArg(typ wit.Type, raw string) (cgrf.Value, error) {
	switch typ.(type) {
	case wit.Bool:
		b, err := strconv.ParseBool(raw)
		return cgrf.NewBool(b), err
	case wit.U8:
		n, err := strconv.ParseUint(raw, 10, 8)
		return cgrf.NewU8(uint8(n)), err
	case wit.U16:
		n, err := strconv.ParseUint(raw, 10, 16)
		return cgrf.NewU16(uint16(n)), err
	case wit.U32:
		n, err := strconv.ParseUint(raw, 10, 32)
		return cgrf.NewU32(uint32(n)), err
	case wit.U64:
		n, err := strconv.ParseUint(raw, 10, 64)
		return cgrf.NewU64(n), err
	case wit.S8:
		n, err := strconv.ParseInt(raw, 10, 8)
		return cgrf.NewS8(int8(n)), err
	case wit.S16:
		n, err := strconv.ParseInt(raw, 10, 16)
		return cgrf.NewS16(int16(n)), err
	case wit.S32:
		n, err := strconv.ParseInt(raw, 10, 32)
		return cgrf.NewS32(int32(n)), err
	case wit.S64:
		n, err := strconv.ParseInt(raw, 10, 64)
		return cgrf.NewS64(n), err
	case wit.F32:
		f, err := strconv.ParseFloat(raw, 32)
		return cgrf.NewF32(float32(f)), err
	case wit.F64:
		f, err := strconv.ParseFloat(raw, 64)
		return cgrf.NewF64(f), err
	case wit.String:
		return cgrf.NewString(raw), nil
	}
	return cgrf.Value{}, fmt.Errorf("unsupported argument type %T", typ)
}

func formatValue(v cgrf.Value) string {
	switch v.Kind() {
	case cgrf.KindBool:
		return strconv.FormatBool(v.Bool())
	case cgrf.KindU8, cgrf.KindU16, cgrf.KindU32, cgrf.KindU64:
		return strconv.FormatUint(v.Uint(), 10)
	case cgrf.KindS8, cgrf.KindS16, cgrf.KindS32, cgrf.KindS64:
		return strconv.FormatInt(v.Int(), 10)
	case cgrf.KindF32:
		return strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32)
	case cgrf.KindF64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case cgrf.KindChar:
		return string(v.Char())
	case cgrf.KindString:
		return v.String()
	}
	return fmt.Sprintf("<%s>", v.Kind())
}
