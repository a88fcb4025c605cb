package main

import (
	"errors"
	"fmt"
	"os"

	"tripstack/internal/orchestrator"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		var xe *orchestrator.ExitError
		if errors.As(err, &xe) {
			os.Exit(xe.Code)
		}
		os.Exit(1)
	}
}
