// Command codn is the CLI front end for the codn encrypted codename
// store (SPEC_FULL.md §4.9): set/get text or file entries, eval a stored
// command, or benchmark the KDF.
package main

import (
	"fmt"
	"os"
)

const storageEnvVar = "CODN_STORAGE_FILE"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "set", "sett":
		err = runSet(args)
	case "gett":
		err = runGet(args)
	case "setf":
		err = runSetFile(args)
	case "getf":
		err = runGetFile(args)
	case "eval":
		runEval(args) // exits the process itself, matching the child's exit code
		return
	case "bench":
		err = runBench(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "codn: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "codn: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: codn <command> [flags]

commands:
  set, sett -s FILE -n NAME -t TEXT   store TEXT under NAME
  gett      -s FILE -n NAME           print the text stored under NAME
  setf      -s FILE -n NAME PATH      store the file at PATH under NAME
  getf      -s FILE -n NAME PATH      write the entry stored under NAME to PATH
  eval      -s FILE -n NAME           run the text stored under NAME as a shell command
  bench                               benchmark the KDF and blob primitives

-s defaults to the %s environment variable.
Any of -n/-t prompts interactively (with hidden input for -n) when omitted.
`, storageEnvVar)
}
