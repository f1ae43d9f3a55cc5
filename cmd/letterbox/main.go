package main

import (
	"fmt"
	"io"
	"os"

	"github.com/zurustar/letterbox/pkg/app"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the application and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	application := app.New(stdout, stderr)
	if err := application.Run(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
