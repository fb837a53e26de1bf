package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdir switches into a temporary directory for the duration of the test
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected int
	}{
		{"no arguments", nil, 1},
		{"unknown command", []string{"destroy"}, 1},
		{"create without name", []string{"create"}, 1},
		{"create with two names", []string{"create", "a", "b"}, 1},
		{"create with bad flag", []string{"create", "-nope", "app"}, 1},
		{"create with invalid name", []string{"create", "../up"}, 1},
		{"help", []string{"help"}, 0},
		{"version", []string{"version"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			if code != tt.expected {
				t.Errorf("Expected exit code %d, got %d (stderr: %s)", tt.expected, code, stderr.String())
			}
		})
	}
}

func TestRunCreate(t *testing.T) {
	dir := chdir(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"create", "-module", "example.com/hello", "hello"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"Creating new Preact-Kit app in", "cd hello", "go mod tidy", "go run ."} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got %q", want, out)
		}
	}

	gomod, err := os.ReadFile(filepath.Join(dir, "hello", "go.mod"))
	if err != nil {
		t.Fatalf("Expected go.mod to be generated: %v", err)
	}
	if !strings.Contains(string(gomod), "module example.com/hello") {
		t.Errorf("Expected module path in go.mod, got %q", gomod)
	}
}

func TestRunCreateWithKitPath(t *testing.T) {
	dir := chdir(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"create", "-kit-path", "kit", "local"}, &stdout, &stderr); code != 0 {
		t.Fatalf("Expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}

	gomod, err := os.ReadFile(filepath.Join(dir, "local", "go.mod"))
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(gomod), "=> "+filepath.Join(wd, "kit")) {
		t.Errorf("Expected absolute replace directive, got %q", gomod)
	}
}

func TestRunCreateExistingFolder(t *testing.T) {
	dir := chdir(t)
	if err := os.Mkdir(filepath.Join(dir, "taken"), 0755); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"create", "taken"}, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Errorf("Expected 'already exists' message, got %q", stderr.String())
	}
}
