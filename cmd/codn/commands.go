package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/term"

	"github.com/rtmigo/codn/internal/speed"

	codn "github.com/rtmigo/codn"
)

// storageFlags registers the -s/--storage flag both fs flags point at, as
// documented in SPEC_FULL.md §4.9: it defaults to CODN_STORAGE_FILE.
func storageFlags(fs *flag.FlagSet, storage *string) {
	def := os.Getenv(storageEnvVar)
	fs.StringVar(storage, "s", def, "storage file path")
	fs.StringVar(storage, "storage", def, "storage file path")
}

func nameFlags(fs *flag.FlagSet, name *string) {
	fs.StringVar(name, "n", "", "codename")
	fs.StringVar(name, "name", "", "codename")
}

func requireStorage(s string) error {
	if s == "" {
		return fmt.Errorf("storage file must be specified with -s or %s", storageEnvVar)
	}
	return nil
}

// promptHidden reads one line from the terminal with input echo disabled,
// mirroring the original CLI's `prompt=..., hide_input=True` codename
// prompts (original_source/codn/_cli.py).
func promptHidden(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return string(b), nil
}

func promptVisible(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func runSet(args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	var storage, name, text string
	storageFlags(fs, &storage)
	nameFlags(fs, &name)
	fs.StringVar(&text, "t", "", "text to store")
	fs.StringVar(&text, "text", "", "text to store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireStorage(storage); err != nil {
		return err
	}

	var err error
	if name == "" {
		if name, err = promptHidden("Codename"); err != nil {
			return err
		}
	}
	if text == "" {
		if text, err = promptVisible("Text"); err != nil {
			return err
		}
	}

	s, err := codn.Open(storage)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SetText(name, text)
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("gett", flag.ExitOnError)
	var storage, name string
	storageFlags(fs, &storage)
	nameFlags(fs, &name)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireStorage(storage); err != nil {
		return err
	}

	var err error
	if name == "" {
		if name, err = promptHidden("Codename"); err != nil {
			return err
		}
	}

	s, err := codn.Open(storage)
	if err != nil {
		return err
	}
	defer s.Close()

	text, err := s.GetText(name)
	if err != nil {
		if codn.IsNotFound(err) {
			os.Exit(2)
		}
		return err
	}
	fmt.Println(text)
	return nil
}

func runSetFile(args []string) error {
	fs := flag.NewFlagSet("setf", flag.ExitOnError)
	var storage, name string
	storageFlags(fs, &storage)
	nameFlags(fs, &name)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("setf requires exactly one PATH argument")
	}
	if err := requireStorage(storage); err != nil {
		return err
	}

	var err error
	if name == "" {
		if name, err = promptHidden("Codename"); err != nil {
			return err
		}
	}

	s, err := codn.Open(storage)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SetFile(name, fs.Arg(0))
}

func runGetFile(args []string) error {
	fs := flag.NewFlagSet("getf", flag.ExitOnError)
	var storage, name string
	storageFlags(fs, &storage)
	nameFlags(fs, &name)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("getf requires exactly one PATH argument")
	}
	if err := requireStorage(storage); err != nil {
		return err
	}

	var err error
	if name == "" {
		if name, err = promptHidden("Codename"); err != nil {
			return err
		}
	}

	s, err := codn.Open(storage)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.GetFile(name, fs.Arg(0)); err != nil {
		if codn.IsNotFound(err) {
			os.Exit(2)
		}
		return err
	}
	return nil
}

// runEval retrieves the stored text and runs it as a shell command,
// exiting with the child's exit code -- it never returns normally.
func runEval(args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	var storage, name string
	storageFlags(fs, &storage)
	nameFlags(fs, &name)
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if err := requireStorage(storage); err != nil {
		fmt.Fprintf(os.Stderr, "codn: %v\n", err)
		os.Exit(1)
	}

	var err error
	if name == "" {
		if name, err = promptHidden("Codename"); err != nil {
			fmt.Fprintf(os.Stderr, "codn: %v\n", err)
			os.Exit(1)
		}
	}

	s, err := codn.Open(storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codn: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	text, err := s.GetText(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codn: %v\n", err)
		if codn.IsNotFound(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	cmd := exec.Command("/bin/sh", "-c", text)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	_ = cmd.Run()
	os.Exit(cmd.ProcessState.ExitCode())
}

func runBench([]string) error {
	speed.Run()
	return nil
}
