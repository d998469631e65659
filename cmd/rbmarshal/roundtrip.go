package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/lk2023060901/rbmarshal-go/application"
	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
)

// runRoundTrip 解码、重新编码、再次解码，并比较两次解码得到的值树。
// 字节不要求一致：对象回溯引用会展开，符号是否写为引用取决于 --symbol-links。
func runRoundTrip(ctx context.Context, app *application.Application, args []string, stdout, stderr io.Writer) int {
	s := app.Settings()
	fs := pflag.NewFlagSet("roundtrip", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	symbolLinks := fs.Bool("symbol-links", s.Encoder.SymbolLinks, "write repeated symbols as back-references")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "rbmarshal roundtrip: no input files")
		return exitUsage
	}

	l, err := newLoader(app)
	if err != nil {
		fmt.Fprintln(stderr, "rbmarshal roundtrip:", err)
		return exitFail
	}
	defer l.Close()

	results, loadErr := l.LoadAll(ctx, fs.Args())
	code := exitOK
	for _, r := range results {
		data, err := marshal.Encode(r.Value, marshal.WithEncoderConfig(s.Encoder), marshal.WithSymbolLinks(*symbolLinks))
		if err != nil {
			fmt.Fprintf(stdout, "FAIL\t%s\tencode: %v\n", r.Path, err)
			code = exitFail
			continue
		}
		back, err := marshal.Decode(data, marshal.WithDecoderConfig(s.Decoder))
		if err != nil {
			fmt.Fprintf(stdout, "FAIL\t%s\tdecode: %v\n", r.Path, err)
			code = exitFail
			continue
		}
		status := "ok"
		if !marshal.Equal(r.Value, back) {
			status = "MISMATCH"
			code = exitFail
		}
		fmt.Fprintf(stdout, "%s\t%s\tinput=%d output=%d digest=%s\n", status, r.Path, r.Size, len(data), r.Digest[:16])
	}
	if loadErr != nil {
		fmt.Fprintln(stderr, "rbmarshal roundtrip:", loadErr)
		return exitFail
	}
	return code
}
