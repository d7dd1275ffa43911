package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/scanx-wasm/config"
	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/full"
	"github.com/wippyai/scanx-wasm/reader"
	"github.com/wippyai/scanx-wasm/runtime"
	"github.com/wippyai/scanx-wasm/writer"
)

// app holds state shared by every command
type app struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	cfgPath string
	mode    string
	cdnHost string
	verbose bool

	cfg *config.Config
	log *zap.Logger
	rt  *runtime.Runtime

	// newRuntime builds the runtime once the configuration is resolved
	newRuntime func(cfg *config.Config, log *zap.Logger) (*runtime.Runtime, error)
	// isTerminal reports whether stdout is an interactive terminal
	isTerminal func() bool
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
		newRuntime: func(cfg *config.Config, log *zap.Logger) (*runtime.Runtime, error) {
			return runtime.New(runtime.WithConfig(cfg), runtime.WithLogger(log))
		},
		isTerminal: stdoutIsTerminal,
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scanx",
		Short: "Read and write barcodes with the scanx engine",
		Long: `scanx runs the scanx barcode engine in a sandboxed WebAssembly runtime.

Engine binaries are located by the deployment mode:
* production   versioned binaries from the CDN, cached on disk with cache_dir
* development  <local_dir>/<variant>/scanx_<variant>.wasm
* restricted   nothing is fetched; only library callers can supply an engine

Configuration is read from ~/.scanx/config.yaml and SCANX_ environment
variables; flags override both.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.SetIn(a.stdin)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "config file (default "+config.DefaultConfigPath+")")
	flags.StringVar(&a.mode, "mode", "", "deployment mode: production or development")
	flags.StringVar(&a.cdnHost, "cdn-host", "", "CDN host for production binaries")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log engine activity to stderr")

	cmd.AddCommand(newReadCmd(a), newWriteCmd(a), newInfoCmd(a))
	return cmd
}

// execute runs the command line and closes the runtime whether or not the
// command succeeded
func execute(a *app, args []string) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return multierr.Append(err, a.teardown(context.Background()))
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.mode != "" {
		cfg.Mode = config.Mode(a.mode)
	}
	if a.cdnHost != "" {
		cfg.CDNHost = a.cdnHost
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.log = zap.NewNop()
	if a.verbose {
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(a.stderr),
			zap.DebugLevel,
		)
		a.log = zap.New(core, zap.Development())
	}
	engine.SetLogger(a.log)

	rt, err := a.newRuntime(cfg, a.log)
	if err != nil {
		return err
	}
	a.rt = rt
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.rt == nil {
		return nil
	}
	err := a.rt.Close(ctx)
	a.rt = nil
	_ = a.log.Sync()
	return err
}

// factory maps a variant name to its factory
func factory(name string) (*engine.Factory, bool) {
	switch name {
	case "reader":
		return reader.Factory, true
	case "writer":
		return writer.Factory, true
	case "full":
		return full.Factory, true
	}
	return nil, false
}
