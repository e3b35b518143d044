package loader

import (
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/renamemap"
	"github.com/wippyai/wasm-pack/wasm"
	"go.uber.org/zap"
)

const (
	// NamespaceModule holds generated loader modules.
	NamespaceModule = "wasm-module"
	// NamespaceBinary holds raw binaries emitted as assets.
	NamespaceBinary = "wasm-binary"
)

// PluginName identifies the plugin in esbuild diagnostics.
const PluginName = "wasm-loader"

// Plugin returns the esbuild plugin resolving `.wasm` imports to loader
// modules.
func Plugin() api.Plugin {
	return api.Plugin{
		Name:  PluginName,
		Setup: setup,
	}
}

func setup(build api.PluginBuild) {
	build.OnResolve(api.OnResolveOptions{Filter: `\.wasm$`}, resolve)
	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: NamespaceModule}, loadModule)
	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: NamespaceBinary}, loadBinary)
}

func resolve(args api.OnResolveArgs) (api.OnResolveResult, error) {
	if args.Namespace == NamespaceModule {
		return api.OnResolveResult{Path: args.Path, Namespace: NamespaceBinary}, nil
	}
	if args.ResolveDir == "" {
		return api.OnResolveResult{}, nil
	}

	path := args.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(args.ResolveDir, path)
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return api.OnResolveResult{}, err
	}
	return api.OnResolveResult{Path: real, Namespace: NamespaceModule}, nil
}

// Load generates loader source for the binary at path.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.StageCodegen, errors.KindIO, err, path)
	}
	mod, err := wasm.ParseModule(data)
	if err != nil {
		return "", errors.Wrap(errors.StageCodegen, errors.KindInvalidModule, err, path)
	}

	names, err := renamemap.LoadOptional(renamemap.PathFor(path))
	if err != nil {
		Logger().Warn("ignoring rename map", zap.String("path", path), zap.Error(err))
	}

	Logger().Debug("generated loader",
		zap.String("path", path),
		zap.Int("imports", len(mod.Imports)),
		zap.Int("exports", len(mod.Exports)),
		zap.Int("renames", names.Len()))
	return Generate(path, mod, names), nil
}

func loadModule(args api.OnLoadArgs) (api.OnLoadResult, error) {
	contents, err := Load(args.Path)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	return api.OnLoadResult{
		Contents:   &contents,
		ResolveDir: filepath.Dir(args.Path),
		Loader:     api.LoaderJS,
		WatchFiles: []string{args.Path, renamemap.PathFor(args.Path)},
	}, nil
}

func loadBinary(args api.OnLoadArgs) (api.OnLoadResult, error) {
	data, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	contents := string(data)
	return api.OnLoadResult{
		Contents: &contents,
		Loader:   api.LoaderFile,
	}, nil
}
