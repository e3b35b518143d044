package bundle

import (
	"os"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	lineBreaks = regexp.MustCompile(`\r?\n\s*`)
	tagGaps    = regexp.MustCompile(`>\n<`)
)

// TrimHTML drops indentation and the line breaks between adjacent tags.
func TrimHTML(html string) string {
	html = strings.TrimSpace(html)
	html = lineBreaks.ReplaceAllString(html, "\n")
	return tagGaps.ReplaceAllString(html, "><")
}

// HTMLPlugin copies HTML entry points to the output after TrimHTML.
func HTMLPlugin() api.Plugin {
	return api.Plugin{
		Name: "html-minifier",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.html$`}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				data, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				contents := TrimHTML(string(data))
				return api.OnLoadResult{
					Contents:   &contents,
					WatchFiles: []string{args.Path},
					Loader:     api.LoaderCopy,
				}, nil
			})
		},
	}
}
