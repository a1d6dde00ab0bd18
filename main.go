// Package main is the entry point for the pcapnote packet comment tool.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/pcapnote/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
