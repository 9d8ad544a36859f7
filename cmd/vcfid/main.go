// Package main provides the vcfid command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/inodb/vcfid/internal/rewrite"
	"github.com/inodb/vcfid/internal/verify"
)

// ExitError is the exit code for any failed run.
const ExitError = 1

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		// Data errors get a hint; cobra already printed the message.
		var recErr *rewrite.RecordError
		if errors.As(err, &recErr) {
			fmt.Fprintf(os.Stderr, "Hint: the input is not valid tab-delimited variant data; no output was kept\n")
		}
		var mm *verify.Mismatch
		if errors.As(err, &mm) {
			fmt.Fprintf(os.Stderr, "Hint: the output file does not correspond to this input; regenerate it\n")
		}
		os.Exit(ExitError)
	}
}
