package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "dev":
		if err := runDev(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  strata serve [--addr <addr>] [--cmd <path>]")
	fmt.Fprintln(os.Stderr, "  strata dev [--addr <addr>] [--cmd <path>]")
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	addr := fs.String("addr", "", "Address to listen on (sets APP_ADDR env var)")
	cmdPath := fs.String("cmd", "./cmd/server", "Path to the server package to run")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := exec.Command("go", "run", *cmdPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if a := strings.TrimSpace(*addr); a != "" {
		cmd.Env = append(cmd.Env, "APP_ADDR="+a)
	}
	return cmd.Run()
}

func runDev(args []string) error {
	fs := flag.NewFlagSet("dev", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	addr := fs.String("addr", "", "Address to listen on (sets APP_ADDR env var)")
	cmdPath := fs.String("cmd", "./cmd/server", "Path to the server package")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := exec.LookPath("air"); err != nil {
		return errors.New("air is not installed; install it with: go install github.com/air-verse/air@latest")
	}

	if err := ensureAirToml(*cmdPath); err != nil {
		return err
	}

	cmd := exec.Command("air", "-c", ".air.toml")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if a := strings.TrimSpace(*addr); a != "" {
		cmd.Env = append(cmd.Env, "APP_ADDR="+a)
	}
	return cmd.Run()
}

func ensureAirToml(cmdPath string) error {
	path := ".air.toml"
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cmdPath = strings.TrimSpace(cmdPath)
	if cmdPath == "" {
		cmdPath = "./cmd/server"
	}

	content := "root = \".\"\n" +
		"tmp_dir = \"tmp\"\n\n" +
		"[build]\n" +
		"  cmd = \"go build -o ./tmp/strata-dev " + cmdPath + "\"\n" +
		"  bin = \"tmp/strata-dev\"\n" +
		"  include_ext = [\"go\", \"html\", \"tmpl\", \"tpl\"]\n" +
		"  exclude_dir = [\"tmp\", \"vendor\", \"node_modules\"]\n" +
		"  stop_on_error = true\n\n" +
		"[misc]\n" +
		"  clean_on_exit = true\n"

	return os.WriteFile(path, []byte(content), 0o644)
}
