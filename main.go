package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/scaffold"

	log "github.com/sirupsen/logrus"
)

const usage = `Usage:
  preact-kit create [-module path] [-kit-path dir] <app-name>
  preact-kit version
`

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	switch args[0] {
	case "create":
		return runCreate(args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "preact-kit %s\n", scaffold.KitVersion)
		return 0
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n\n%s", args[0], usage)
		return 1
	}
}

func runCreate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	modulePath := fs.String("module", "", "Go module path of the new app (defaults to the app name)")
	kitPath := fs.String("kit-path", "", "local preact-kit checkout to build against")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	name := fs.Arg(0)
	if err := scaffold.ValidateName(name); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	target := filepath.Join(cwd, name)
	if _, err := os.Stat(target); err == nil {
		fmt.Fprintf(stderr, "Folder %s already exists.\n", name)
		return 1
	}

	data := scaffold.Data{AppName: name, ModulePath: *modulePath}
	if *kitPath != "" {
		abs, err := filepath.Abs(*kitPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		data.KitPath = abs
	}

	fmt.Fprintf(stdout, "Creating new Preact-Kit app in %s...\n", target)
	if err := scaffold.Create(target, data); err != nil {
		if errors.Is(err, scaffold.ErrTargetExists) {
			fmt.Fprintf(stderr, "Folder %s already exists.\n", name)
			return 1
		}
		log.Errorf("%s %v", logcolors.LogScaffold, err)
		fmt.Fprintf(stderr, "Failed to create %s: %v\n", name, err)
		return 1
	}

	fmt.Fprintf(stdout, "Done!\nNext steps:\n  cd %s\n  go mod tidy\n  go run .\n", name)
	return 0
}
