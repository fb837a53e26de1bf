package routes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/bnolan/preact-kit/logcolors"

	log "github.com/sirupsen/logrus"
)

// moduleFile matches route module sources; tests are not routes
var moduleFile = regexp.MustCompile(`^([A-Za-z0-9_-]+)\.go$`)

// ScanDir returns the route module stems found in dir, sorted. exists is
// false when dir is missing, which is not an error.
func ScanDir(dir string) (stems []string, exists bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read route directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := moduleFile.FindStringSubmatch(entry.Name())
		if m == nil || isTestStem(m[1]) {
			continue
		}
		stems = append(stems, m[1])
	}
	sort.Strings(stems)
	return stems, true, nil
}

func isTestStem(stem string) bool {
	return strings.HasSuffix(stem, "_test")
}

// APIRoute maps a module stem to its API path: ping -> /api/ping
func APIRoute(stem string) string {
	return APIPrefix + "/" + stem
}

// PageRoute maps a module stem to its page path: index -> /, about -> /about
func PageRoute(stem string) string {
	if stem == "index" {
		return "/"
	}
	return "/" + stem
}

// Select returns the module names to mount from dir: the exported names
// that have a matching source file. Sources without an export are skipped,
// as are exports without a source. When dir does not exist (a binary
// deployed without its sources) every exported name is selected.
func Select(dir string, exported []string) ([]string, error) {
	stems, exists, err := ScanDir(dir)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(exported))
	for _, name := range exported {
		names[name] = true
	}

	if !exists {
		log.Infof("%s Directory %s not found, mounting all %d exports", logcolors.LogRoutes, dir, len(exported))
		selected := append([]string(nil), exported...)
		sort.Strings(selected)
		return selected, nil
	}

	found := make(map[string]bool, len(stems))
	var selected []string
	for _, stem := range stems {
		found[stem] = true
		if !names[stem] {
			log.Debugf("%s %s/%s.go has no export, skipping", logcolors.LogRoutes, dir, stem)
			continue
		}
		selected = append(selected, stem)
	}
	for _, name := range exported {
		if !found[name] {
			log.Warnf("%s %q is exported but %s/%s.go does not exist, skipping", logcolors.LogRoutes, name, dir, name)
		}
	}
	return selected, nil
}

// Discover registers the API handlers selected from dir (see Select) and
// returns their paths.
func Discover(dir string, exports Exports, reg *Registry) ([]string, error) {
	exported := make([]string, 0, len(exports))
	for name, handler := range exports {
		if handler != nil {
			exported = append(exported, name)
		}
	}

	stems, err := Select(dir, exported)
	if err != nil {
		return nil, err
	}

	var registered []string
	for _, stem := range stems {
		path := APIRoute(stem)
		if err := reg.Register(path, exports[stem]); err != nil {
			return registered, err
		}
		log.Infof("%s %s -> %s", logcolors.LogRoutes, logcolors.Route(path), stem)
		registered = append(registered, path)
	}
	return registered, nil
}
