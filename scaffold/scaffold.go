// Package scaffold generates new preact-kit applications from the template
// tree embedded in the binary.
package scaffold

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/bnolan/preact-kit/logcolors"

	log "github.com/sirupsen/logrus"
)

// KitModule is the import path generated apps depend on
const KitModule = "github.com/bnolan/preact-kit"

// KitVersion is the version generated apps require. Release builds set it
// with -ldflags "-X github.com/bnolan/preact-kit/scaffold.KitVersion=...".
var KitVersion = "v0.1.0"

// templateSuffix marks files rendered with text/template
const templateSuffix = ".tmpl"

//go:embed all:templates
var templates embed.FS

var (
	// ErrTargetExists is returned when the target directory is already there
	ErrTargetExists = errors.New("target already exists")
	// ErrInvalidName is returned for app names that are not a plain directory name
	ErrInvalidName = errors.New("invalid app name")
)

var appName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Data is the context every template is rendered with
type Data struct {
	AppName    string
	ModulePath string
	KitModule  string
	KitVersion string
	// KitPath, when set, adds a replace directive pointing at a local checkout
	KitPath string
}

// withDefaults fills the fields a caller may leave empty
func (d Data) withDefaults() Data {
	if d.ModulePath == "" {
		d.ModulePath = d.AppName
	}
	if d.KitModule == "" {
		d.KitModule = KitModule
	}
	if d.KitVersion == "" {
		d.KitVersion = KitVersion
	}
	if d.KitPath != "" {
		d.KitPath = filepath.ToSlash(d.KitPath)
	}
	return d
}

// ValidateName checks that name can be used as the app directory
func ValidateName(name string) error {
	if !appName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Create writes a new app into targetDir, which must not exist yet. On
// failure the partially written directory is removed.
func Create(targetDir string, data Data) error {
	if err := ValidateName(data.AppName); err != nil {
		return err
	}
	if _, err := os.Lstat(targetDir); err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, targetDir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", targetDir, err)
	}

	data = data.withDefaults()
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", targetDir, err)
	}

	if err := copyTree(targetDir, data); err != nil {
		os.RemoveAll(targetDir)
		return err
	}
	return nil
}

// Files lists the paths Create writes, relative to the target directory
func Files() ([]string, error) {
	var files []string
	err := fs.WalkDir(templates, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := strings.TrimPrefix(p, "templates/")
		files = append(files, strings.TrimSuffix(rel, templateSuffix))
		return nil
	})
	return files, err
}

func copyTree(targetDir string, data Data) error {
	return fs.WalkDir(templates, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, "templates"), "/")
		if rel == "" {
			return nil
		}

		dest := filepath.Join(targetDir, filepath.FromSlash(strings.TrimSuffix(rel, templateSuffix)))
		if d.IsDir() {
			return os.MkdirAll(dest, 0755)
		}

		content, err := templates.ReadFile(p)
		if err != nil {
			return err
		}
		if strings.HasSuffix(rel, templateSuffix) {
			content, err = renderTemplate(rel, content, data)
			if err != nil {
				return err
			}
		}

		if err := os.WriteFile(dest, content, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
		log.Debugf("%s wrote %s", logcolors.LogScaffold, dest)
		return nil
	})
}

func renderTemplate(name string, content []byte, data Data) ([]byte, error) {
	tmpl, err := template.New(path.Base(name)).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
