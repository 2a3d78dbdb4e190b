package main

import (
	"fmt"
	"os"

	"github.com/syrinxlabs/syrinx/cmd"
	"github.com/syrinxlabs/syrinx/internal/conf"
)

func main() {
	settings := &conf.Settings{}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
