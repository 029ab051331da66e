package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ruudy-sib/outbound/internal/domain"
)

const appName = "outbound"

var version = "dev"

// errFatal marks errors after which the process must exit with
// domain.FatalExitCode.
var errFatal = errors.New("fatal")

func main() {
	os.Exit(Execute())
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFatal):
		return domain.FatalExitCode
	default:
		return 1
	}
}
