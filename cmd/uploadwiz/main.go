package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rshade/uploadwiz/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker

func main() {
	if code := run(context.Background(), os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, args []string) int {
	root := cli.NewRootCmd(version)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return extractExitCode(err)
}

// extractExitCode maps a command error to the process exit status.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}
	var batchErr *cli.BatchExitError
	if errors.As(err, &batchErr) {
		return batchErr.ExitCode
	}
	return 1
}
