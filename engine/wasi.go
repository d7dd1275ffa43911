package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// instantiateWASI registers wasi_snapshot_preview1 in rt. Emscripten
// standalone builds import fd_write and proc_exit from it even when they
// never touch the filesystem.
func instantiateWASI(ctx context.Context, rt wazero.Runtime) error {
	if rt.Module(wasi_snapshot_preview1.ModuleName) != nil {
		return nil
	}
	_, err := wasi_snapshot_preview1.Instantiate(ctx, rt)
	return err
}

// moduleConfig returns the config the loader instantiates the engine with.
// Engine stdout and stderr are forwarded to the logger at debug level.
// Reactor builds run _initialize; missing start functions are skipped.
func moduleConfig(v Variant) (wazero.ModuleConfig, func()) {
	log := Logger().With(zap.String("variant", v.Name))
	stdout := &zapio.Writer{Log: log.With(zap.String("stream", "stdout")), Level: zap.DebugLevel}
	stderr := &zapio.Writer{Log: log.With(zap.String("stream", "stderr")), Level: zap.DebugLevel}

	cfg := wazero.NewModuleConfig().
		WithName("scanx_" + v.Name).
		WithStdout(stdout).
		WithStderr(stderr).
		WithStartFunctions(ExportInitialize)
	return cfg, func() {
		_ = stdout.Close()
		_ = stderr.Close()
	}
}
