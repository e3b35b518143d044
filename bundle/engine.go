package bundle

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"deno":    api.EngineDeno,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// ParseEngine parses an esbuild target such as "firefox117" or "safari16.4".
func ParseEngine(s string) (api.Engine, error) {
	i := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return api.Engine{}, fmt.Errorf("invalid engine %q: expected name followed by version", s)
	}
	name, ok := engineNames[strings.ToLower(s[:i])]
	if !ok {
		return api.Engine{}, fmt.Errorf("unknown engine %q", s[:i])
	}
	return api.Engine{Name: name, Version: s[i:]}, nil
}
