package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/wasm-pack/config"
	"github.com/wippyai/wasm-pack/inspect"
	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/orchestrator"
	"github.com/wippyai/wasm-pack/pack"
	"github.com/wippyai/wasm-pack/renamemap"
	"github.com/wippyai/wasm-pack/runner"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "wasmpack [port]",
		Short: "Build a Rust WebAssembly crate and bundle it for the browser",
		Long: `wasmpack packages the cdylib crate of a cargo workspace with wasm-bindgen
and wasm-opt, then bundles the web front end with esbuild.

Without a port (or with 0) it runs one minified build into <out-dir>/wasm-pkg
and <out-dir>/web. With a positive port it rebuilds on every source change
and serves the site with live reload.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runRoot,
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyOutDir, "dist", "output directory")
	flags.String(config.KeyPackage, "", "crate to package when the workspace has several")
	flags.String(config.KeyTarget, "wasm32-unknown-unknown", "compilation target triple")
	flags.Bool(config.KeyVerbose, false, "log every pipeline stage")
	flags.Bool(config.KeyDebug, false, "development logging")
	flags.Bool(config.KeyDashboard, false, "interactive dashboard in watch mode")
	flags.Duration(config.KeyDebounce, 0, "quiet period before a rebuild (default 300ms)")
	flags.StringSlice(config.KeyEntryPoints, nil, "bundle entry points (default web/index.ts,web/index.html)")
	flags.StringSlice(config.KeyEngine, nil, "browser targets (default firefox117)")

	root.AddCommand(a.packCmd(), a.inspectCmd())
	return root
}

// load resolves configuration. Flags take precedence over the file and
// environment only when set explicitly.
func (a *app) load(cmd *cobra.Command) (*config.Config, error) {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	return config.Load(a.v, wd)
}

func newLogger(cfg *config.Config, out io.Writer) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	if out == nil {
		return zap.NewNop(), nil
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(out), zap.InfoLevel)
	return zap.New(core), nil
}

func setup(cfg *config.Config, out io.Writer) (*zap.Logger, error) {
	logger, err := newLogger(cfg, out)
	if err != nil {
		return nil, err
	}
	pack.SetLogger(logger.Named("pack"))
	loader.SetLogger(logger.Named("loader"))
	return logger, nil
}

func parsePort(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", args[0])
	}
	return port, nil
}

func (a *app) runRoot(cmd *cobra.Command, args []string) error {
	port, err := parsePort(args)
	if err != nil {
		return err
	}
	cfg, err := a.load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if port == 0 {
		logger, err := setup(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		return orchestrator.New(cfg, logger).OneShot(ctx, cfg.OutDir)
	}

	if cfg.Dashboard && term.IsTerminal(int(os.Stdout.Fd())) {
		return runDashboard(ctx, cfg, port)
	}

	logger, err := setup(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	stop, err := orchestrator.New(cfg, logger).Watch(ctx, cfg.OutDir, port)
	if err != nil {
		return err
	}
	<-ctx.Done()
	stop()
	return nil
}

func (a *app) packCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Build the wasm package only",
		Long:  `Compiles the crate, extracts glue, optimizes the binary and writes package.json into <out-dir>/wasm-pkg.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd)
			if err != nil {
				return err
			}
			logger, err := setup(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			o := orchestrator.New(cfg, logger)
			outDir := filepath.Join(cfg.OutDir, orchestrator.PackageDir)
			if !watch {
				p, _, err := o.Prepare(ctx, outDir)
				if err != nil {
					return err
				}
				return o.Pack(ctx, p)
			}

			stop, err := o.WatchPack(ctx, outDir)
			if err != nil {
				return err
			}
			<-ctx.Done()
			stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild whenever the crate changes")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.wasm>",
		Short: "List the imports and exports of a binary",
		Long:  `Prints imports grouped by module, exports and function signatures. Names are restored through an adjacent .renamed.json when present.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			names, err := renamemap.LoadOptional(renamemap.PathFor(path))
			if err != nil {
				fmt.Fprintf(os.Stderr, "ignoring rename map: %v\n", err)
			}

			rep, err := inspect.Inspect(cmd.Context(), data, names)
			if err != nil {
				return err
			}
			styled := term.IsTerminal(int(os.Stdout.Fd()))
			return inspect.Render(cmd.OutOrStdout(), filepath.Base(path), rep, styled)
		},
	}
}

// quietExecutor keeps child output off the terminal while the dashboard
// owns it. Stderr tails still reach error reports.
func quietExecutor(logger *zap.Logger) func(dir string) runner.Executor {
	return func(dir string) runner.Executor {
		r := runner.New(dir)
		r.Stdout = io.Discard
		r.Stderr = io.Discard
		r.Logger = logger
		return r
	}
}
