package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/lk2023060901/rbmarshal-go/application"
	"github.com/lk2023060901/rbmarshal-go/internal/export"
	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
)

const formatValue = "value"

func runDump(ctx context.Context, app *application.Application, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	formatName := fs.StringP("format", "f", formatValue, "output format: value, json, yaml or cbor")
	indent := fs.Bool("indent", false, "indent JSON output")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "rbmarshal dump: no input files")
		return exitUsage
	}

	var format export.Format
	if *formatName != formatValue {
		f, err := export.ParseFormat(*formatName)
		if err != nil {
			fmt.Fprintln(stderr, "rbmarshal dump:", err)
			return exitUsage
		}
		format = f
	}

	l, err := newLoader(app)
	if err != nil {
		fmt.Fprintln(stderr, "rbmarshal dump:", err)
		return exitFail
	}
	defer l.Close()

	results, loadErr := l.LoadAll(ctx, fs.Args())
	for _, r := range results {
		if len(results) > 1 && format != export.FormatCBOR {
			fmt.Fprintf(stdout, "==> %s <==\n", r.Path)
		}
		if format == "" {
			fmt.Fprintln(stdout, marshal.Inspect(r.Value))
			continue
		}
		out, err := export.ConvertValue(r.Value, format, export.WithIndent(*indent))
		if err != nil {
			fmt.Fprintf(stderr, "rbmarshal dump: %s: %v\n", r.Path, err)
			loadErr = err
			continue
		}
		_, _ = stdout.Write(out)
		if format == export.FormatJSON {
			fmt.Fprintln(stdout)
		}
	}
	if loadErr != nil {
		fmt.Fprintln(stderr, "rbmarshal dump:", loadErr)
		return exitFail
	}
	return exitOK
}
