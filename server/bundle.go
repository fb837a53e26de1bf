package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnolan/preact-kit/logcolors"

	"github.com/evanw/esbuild/pkg/api"
	log "github.com/sirupsen/logrus"
)

// ErrBundleFailed is returned when esbuild reports errors
var ErrBundleFailed = errors.New("client bundle failed")

// Bundle compiles the client entry into a single ES module at outFile with a
// linked source map. JSX compiles against preact's automatic runtime; preact
// itself stays external and is resolved through the document's import map.
func Bundle(entry, outFile string) error {
	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:     []string{entry},
		Outfile:         outFile,
		Bundle:          true,
		Write:           true,
		Format:          api.FormatESModule,
		Sourcemap:       api.SourceMapLinked,
		Target:          api.ES2020,
		JSX:             api.JSXAutomatic,
		JSXImportSource: "preact",
		External:        []string{"preact", "preact/*"},
		Loader: map[string]api.Loader{
			".js":  api.LoaderJSX,
			".jsx": api.LoaderJSX,
			".ts":  api.LoaderTS,
			".tsx": api.LoaderTSX,
		},
		LogLevel: api.LogLevelSilent,
	})

	for _, w := range result.Warnings {
		log.Warnf("%s %s", logcolors.LogBundle, formatMessage(w))
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, formatMessage(e))
		}
		return fmt.Errorf("%w: %s", ErrBundleFailed, strings.Join(msgs, "; "))
	}

	log.Infof("%s Built %s -> %s", logcolors.LogBundle, entry, outFile)
	return nil
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
