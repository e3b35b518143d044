// Package bundle drives esbuild for the web front end.
//
// Build performs one pass and fails on any diagnostic, warnings included.
// Serve keeps a context alive that watches sources, rebuilds on change and
// pushes reload events to connected pages.
package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wippyai/wasm-pack/errors"
	"go.uber.org/zap"
)

// DefaultEntryPoints are bundled when Options.EntryPoints is empty.
var DefaultEntryPoints = []string{"web/index.ts", "web/index.html"}

// DefaultEngine is the browser baseline of the output.
const DefaultEngine = "firefox117"

// Options configures a bundle pass.
type Options struct {
	EntryPoints []string
	OutDir      string
	Engines     []string
	Define      map[string]string
	Plugins     []api.Plugin

	// Diagnostics receives formatted errors and warnings. Defaults to stderr.
	Diagnostics io.Writer
	Logger      *zap.Logger
	Port        int
	Minify      bool
	Color       bool
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Options) diagnostics() io.Writer {
	if o.Diagnostics == nil {
		return os.Stderr
	}
	return o.Diagnostics
}

func (o *Options) build(serve bool) (api.BuildOptions, error) {
	entries := o.EntryPoints
	if len(entries) == 0 {
		entries = DefaultEntryPoints
	}

	names := o.Engines
	if len(names) == 0 {
		names = []string{DefaultEngine}
	}
	engines := make([]api.Engine, 0, len(names))
	for _, n := range names {
		e, err := ParseEngine(n)
		if err != nil {
			return api.BuildOptions{}, err
		}
		engines = append(engines, e)
	}

	define := map[string]string{"SERVE": strconv.FormatBool(serve)}
	for k, v := range o.Define {
		define[k] = v
	}

	return api.BuildOptions{
		EntryPoints:       entries,
		Bundle:            true,
		Outdir:            o.OutDir,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Engines:           engines,
		MinifyWhitespace:  o.Minify,
		MinifyIdentifiers: o.Minify,
		MinifySyntax:      o.Minify,
		Charset:           api.CharsetUTF8,
		Define:            define,
		AssetNames:        "[name]",
		Loader:            map[string]api.Loader{".html": api.LoaderCopy},
		Plugins:           o.Plugins,
		LogLevel:          api.LogLevelSilent,
		Write:             true,
	}, nil
}

// newContext prints the errors esbuild reports for invalid options.
func (o *Options) newContext(opts api.BuildOptions) (api.BuildContext, error) {
	ctx, cerr := api.Context(opts)
	if cerr != nil {
		o.report(cerr.Errors, nil)
		return nil, errors.New(errors.StageBundle, errors.KindBundlerDiagnostic).
			Detail("%d error(s) creating build context", len(cerr.Errors)).
			Build()
	}
	return ctx, nil
}

// Build runs a single bundle pass. Every error and warning is printed; any
// of them fails the pass.
func Build(ctx context.Context, o Options) error {
	opts, err := o.build(false)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
		return errors.Wrap(errors.StageBundle, errors.KindIO, err, "create output directory")
	}

	bctx, err := o.newContext(opts)
	if err != nil {
		return err
	}
	defer bctx.Dispose()

	stop := context.AfterFunc(ctx, bctx.Cancel)
	defer stop()

	res := bctx.Rebuild()
	o.report(res.Errors, res.Warnings)

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(res.Errors) > 0 || len(res.Warnings) > 0 {
		return errors.BundlerDiagnostic(len(res.Errors), len(res.Warnings))
	}
	o.logger().Info("bundle written", zap.String("dir", o.OutDir), zap.Int("files", len(res.OutputFiles)))
	return nil
}

func (o *Options) report(errs, warnings []api.Message) {
	w := o.diagnostics()
	for _, s := range api.FormatMessages(errs, api.FormatMessagesOptions{Kind: api.ErrorMessage, Color: o.Color}) {
		fmt.Fprint(w, s)
	}
	for _, s := range api.FormatMessages(warnings, api.FormatMessagesOptions{Kind: api.WarningMessage, Color: o.Color}) {
		fmt.Fprint(w, s)
	}
}

// Server is a running serve-and-watch context.
type Server struct {
	bctx  api.BuildContext
	Hosts []string
	Port  int
	once  sync.Once
}

// Address returns the first host:port the server listens on.
func (s *Server) Address() string {
	host := "localhost"
	if len(s.Hosts) > 0 {
		host = s.Hosts[0]
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// Close disposes the context. Safe to call more than once.
func (s *Server) Close() {
	s.once.Do(s.bctx.Dispose)
}

// Serve starts serving OutDir on Port and rebuilds whenever an input
// changes. Pages subscribed to "/esbuild" receive change events.
func Serve(_ context.Context, o Options) (*Server, error) {
	opts, err := o.build(true)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.StageBundle, errors.KindIO, err, "create output directory")
	}

	// Rebuild diagnostics in watch mode are printed by esbuild itself.
	opts.LogLevel = api.LogLevelWarning

	bctx, err := o.newContext(opts)
	if err != nil {
		return nil, err
	}

	var serveOpts api.ServeOptions
	setPort(&serveOpts.Port, o.Port)

	res, err := bctx.Serve(serveOpts)
	if err != nil {
		bctx.Dispose()
		return nil, errors.Wrap(errors.StageBundle, errors.KindIO, err, "serve")
	}
	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		bctx.Dispose()
		return nil, errors.Wrap(errors.StageBundle, errors.KindIO, err, "watch")
	}

	s := &Server{bctx: bctx, Hosts: res.Hosts, Port: int(res.Port)}
	o.logger().Info(fmt.Sprintf("running at %s", s.Address()))
	return s, nil
}

// setPort assigns port whatever integer width the serve options use.
func setPort[T ~int | ~uint16](dst *T, port int) {
	*dst = T(port)
}
