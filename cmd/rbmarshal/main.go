// rbmarshal 查看与校验 Ruby Marshal 文件。
//
// 用法：
//
//	rbmarshal [--config FILE] [--log-level LEVEL] dump [--format value|json|yaml|cbor] [--indent] FILE...
//	rbmarshal [--config FILE] [--log-level LEVEL] roundtrip [--symbol-links] FILE...
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/lk2023060901/rbmarshal-go/application"
	"github.com/lk2023060901/rbmarshal-go/internal/loader"
	"github.com/lk2023060901/rbmarshal-go/pkg/log"
	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
	"github.com/lk2023060901/rbmarshal-go/pkg/metrics"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/hardware"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

type command struct {
	summary string
	run     func(ctx context.Context, app *application.Application, args []string, stdout, stderr io.Writer) int
}

var commands = map[string]command{
	"dump":      {summary: "decode files and print them", run: runDump},
	"roundtrip": {summary: "decode, re-encode and compare files", run: runRoundTrip},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: rbmarshal [flags] <command> [command flags] FILE...")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fmt.Fprint(w, fs.FlagUsages())
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("rbmarshal", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	configPath := fs.String("config", "", "config file (yaml or json)")
	logLevel := fs.String("log-level", "", "override the log level")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return exitUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "rbmarshal: unknown command %q\n", fs.Arg(0))
		usage(stderr, fs)
		return exitUsage
	}

	app := application.New(application.WithConfigFile(*configPath), application.WithLogLevel(*logLevel))
	if err := app.Run(); err != nil {
		fmt.Fprintln(stderr, "rbmarshal:", err)
		return exitFail
	}
	defer app.Close()

	if undo, err := maxprocs.Set(maxprocs.Logger(log.S().Debugf)); err == nil {
		defer undo()
	}
	metrics.Register(prometheus.DefaultRegisterer)
	log.Debug("host resources",
		zap.Int("cpus", hardware.GetCPUNum()),
		zap.Int("physicalCPUs", hardware.GetPhysicalCPUNum()),
		zap.Uint64("memory", hardware.GetMemoryCount()))

	return cmd.run(ctx, app, fs.Args()[1:], stdout, stderr)
}

func newLoader(app *application.Application) (*loader.Loader, error) {
	s := app.Settings()
	return loader.New(s.Loader,
		loader.WithDecoderOptions(marshal.WithDecoderConfig(s.Decoder)),
		loader.WithLogger(app.Logger("loader")),
	)
}
