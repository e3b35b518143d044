// Package orchestrator chains discovery, packaging and bundling into the
// one-shot build and the watch-and-serve development loop.
package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/bundle"
	"github.com/wippyai/wasm-pack/config"
	"github.com/wippyai/wasm-pack/debounce"
	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/pack"
	"github.com/wippyai/wasm-pack/runner"
	"github.com/wippyai/wasm-pack/watcher"
	"github.com/wippyai/wasm-pack/workspace"
)

const (
	// PackageDir is the output subdirectory of the wasm package.
	PackageDir = "wasm-pkg"
	// WebDir is the output subdirectory of the bundled site.
	WebDir = "web"
)

type server interface {
	Address() string
	Close()
}

type closer interface {
	Close() error
}

// stages are the side-effecting steps, replaceable in tests.
type stages struct {
	pack   func(ctx context.Context, p *pack.Params) (*pack.Result, error)
	bundle func(ctx context.Context, o bundle.Options) error
	serve  func(ctx context.Context, o bundle.Options) (server, error)
	watch  func(root string, opts watcher.Options, onChange func(fsnotify.Event)) (closer, error)
}

func defaultStages() stages {
	return stages{
		pack:   pack.Build,
		bundle: bundle.Build,
		serve: func(ctx context.Context, o bundle.Options) (server, error) {
			s, err := bundle.Serve(ctx, o)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		watch: func(root string, opts watcher.Options, onChange func(fsnotify.Event)) (closer, error) {
			w, err := watcher.Watch(root, opts, onChange)
			if err != nil {
				return nil, err
			}
			return w, nil
		},
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExecutor replaces the subprocess executor factory.
func WithExecutor(fn func(dir string) runner.Executor) Option {
	return func(o *Orchestrator) { o.executor = fn }
}

// WithObserver receives every Event.
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithClock replaces the debounce clock.
func WithClock(c debounce.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithDir sets the directory discovery starts from. Relative entry points
// and output directories resolve against it.
func WithDir(dir string) Option {
	return func(o *Orchestrator) { o.dir = dir }
}

// Orchestrator runs builds for one invocation.
type Orchestrator struct {
	cfg      *config.Config
	logger   *zap.Logger
	executor func(dir string) runner.Executor
	observer func(Event)
	clock    debounce.Clock
	stages   stages
	dir      string
}

// New creates an Orchestrator.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:    cfg,
		logger: logger,
		clock:  debounce.SystemClock{},
		stages: defaultStages(),
		dir:    ".",
	}
	o.executor = func(dir string) runner.Executor {
		r := runner.New(dir)
		r.Logger = o.logger
		return r
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	o.observer(ev)
}

func (o *Orchestrator) abs(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.dir, path)
	}
	return filepath.Abs(path)
}

// Prepare discovers the package and returns the parameters for packaging
// it into outDir, along with the workspace metadata.
func (o *Orchestrator) Prepare(ctx context.Context, outDir string) (*pack.Params, *workspace.Metadata, error) {
	md, pkg, err := workspace.Discover(ctx, o.executor(o.dir), o.cfg.Target, o.cfg.Package)
	if err != nil {
		return nil, nil, err
	}
	out, err := o.abs(outDir)
	if err != nil {
		return nil, nil, err
	}

	o.logger.Debug("package selected", zap.String("id", pkg.ID), zap.String("root", md.Root))
	o.emit(Event{Kind: EventDiscovered, Package: pkg.Name})

	return &pack.Params{
		Runner:    o.executor(md.Root),
		TargetDir: md.TargetDir,
		Package:   pkg,
		OutDir:    out,
		Target:    o.cfg.Target,
		Verbose:   o.cfg.Verbose,
		CI:        o.cfg.CI,
	}, md, nil
}

// Pack runs the packaging pipeline once and reports the outcome.
func (o *Orchestrator) Pack(ctx context.Context, p *pack.Params) error {
	o.emit(Event{Kind: EventBuildStarted, Package: p.Package.Name})
	res, err := o.stages.pack(ctx, p)
	if err != nil {
		o.emit(Event{Kind: EventBuildFailed, Package: p.Package.Name, Err: err})
		return err
	}
	o.emit(Event{Kind: EventBuildSucceeded, Package: p.Package.Name, Duration: res.Duration, Renames: res.Renames})
	return nil
}

func (o *Orchestrator) bundleOptions(outDir string, minify bool, port int) (bundle.Options, error) {
	entries := make([]string, 0, len(o.cfg.EntryPoints))
	for _, e := range o.cfg.EntryPoints {
		abs, err := o.abs(e)
		if err != nil {
			return bundle.Options{}, err
		}
		entries = append(entries, abs)
	}
	return bundle.Options{
		EntryPoints: entries,
		OutDir:      outDir,
		Engines:     o.cfg.Engines,
		Plugins:     []api.Plugin{loader.Plugin(), bundle.HTMLPlugin()},
		Logger:      o.logger,
		Port:        port,
		Minify:      minify,
	}, nil
}

// OneShot packages the crate into <outDir>/wasm-pkg and bundles a minified
// site into <outDir>/web. The first failure is returned.
func (o *Orchestrator) OneShot(ctx context.Context, outDir string) error {
	p, _, err := o.Prepare(ctx, filepath.Join(outDir, PackageDir))
	if err != nil {
		return err
	}
	if err := o.Pack(ctx, p); err != nil {
		return err
	}

	web, err := o.abs(filepath.Join(outDir, WebDir))
	if err != nil {
		return err
	}
	opts, err := o.bundleOptions(web, true, 0)
	if err != nil {
		return err
	}
	if err := o.stages.bundle(ctx, opts); err != nil {
		o.emit(Event{Kind: EventBundleFailed, Err: err})
		return err
	}
	o.emit(Event{Kind: EventBundleSucceeded})
	return nil
}

// Watch builds once, then rebuilds the package whenever its sources change
// and serves an unminified bundle on port. A failed first build aborts;
// later failures are logged and the previous artifacts stay in place.
// The returned stop function tears everything down and may be called
// more than once.
func (o *Orchestrator) Watch(ctx context.Context, outDir string, port int) (func(), error) {
	p, md, err := o.Prepare(ctx, filepath.Join(outDir, PackageDir))
	if err != nil {
		return nil, err
	}
	if err := o.Pack(ctx, p); err != nil {
		return nil, err
	}

	web, err := o.abs(filepath.Join(outDir, WebDir))
	if err != nil {
		return nil, err
	}
	opts, err := o.bundleOptions(web, false, port)
	if err != nil {
		return nil, err
	}

	stopPack, err := o.watchPackage(p, md)
	if err != nil {
		return nil, err
	}

	srv, err := o.stages.serve(ctx, opts)
	if err != nil {
		stopPack()
		return nil, err
	}
	o.emit(Event{Kind: EventServing, Address: srv.Address()})

	var once sync.Once
	return func() {
		once.Do(func() {
			stopPack()
			srv.Close()
			o.emit(Event{Kind: EventStopped})
		})
	}, nil
}

// WatchPack is Watch without bundling: the package is rebuilt into outDir
// on every change.
func (o *Orchestrator) WatchPack(ctx context.Context, outDir string) (func(), error) {
	p, md, err := o.Prepare(ctx, outDir)
	if err != nil {
		return nil, err
	}
	if err := o.Pack(ctx, p); err != nil {
		o.logger.Error("initial build failed", zap.Error(err))
	}

	stopPack, err := o.watchPackage(p, md)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			stopPack()
			o.emit(Event{Kind: EventStopped})
		})
	}, nil
}

func (o *Orchestrator) watchPackage(p *pack.Params, md *workspace.Metadata) (func(), error) {
	deb := debounce.New(o.cfg.Debounce, func(ctx context.Context) error {
		return o.Pack(ctx, p)
	}, debounce.WithClock(o.clock), debounce.WithErrorHandler(func(err error) {
		o.logger.Error("rebuild failed", zap.String("package", p.Package.Name), zap.Error(err))
	}))

	ignore := []string{md.TargetDir, p.OutDir}
	w, err := o.stages.watch(p.Package.Path, watcher.Options{Ignore: ignore, Logger: o.logger}, func(ev fsnotify.Event) {
		o.logger.Debug("change", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
		deb.Trigger()
	})
	if err != nil {
		deb.Stop()
		return nil, err
	}

	return func() {
		if err := w.Close(); err != nil {
			o.logger.Warn("close watcher", zap.Error(err))
		}
		deb.Stop()
	}, nil
}
