// Package main is the entry point of the otdissect capture dissector.
package main

import (
	"fmt"
	"os"

	"github.com/slonegd/otdissect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
