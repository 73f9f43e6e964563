// Package tlog provides leveled logging for codn.
//
// The log streams never receive codenames, codename keys or plaintext --
// only blob indices, counts and error classifications. Debug is silent by
// default; set CODN_DEBUG=1 to enable it.
package tlog

import (
	"io"
	"log"
	"os"
)

var (
	// Debug is used for messages that are only useful when diagnosing
	// the library itself.
	Debug *log.Logger
	// Info is used for one-off informational messages.
	Info *log.Logger
	// Warn is used for recoverable problems the caller should know about.
	Warn *log.Logger
	// Fatal is used right before the process exits.
	Fatal *log.Logger
)

func init() {
	debugOut := io.Writer(io.Discard)
	if os.Getenv("CODN_DEBUG") != "" {
		debugOut = os.Stderr
	}
	Debug = log.New(debugOut, "codn: ", 0)
	Info = log.New(os.Stdout, "", 0)
	Warn = log.New(os.Stderr, "codn: warning: ", 0)
	Fatal = log.New(os.Stderr, "codn: fatal: ", 0)
}
