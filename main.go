// The main package for the chess-sync executable.
package main

import (
	"os"

	"github.com/echecs92/chess-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
