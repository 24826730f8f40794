package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/solodeploy/cmd/solodeploy"
	"github.com/arthur-debert/solodeploy/internal/version"
)

func main() {
	rootCmd := solodeploy.NewRootCmd()

	header := &doc.GenManHeader{
		Title:   "SOLODEPLOY",
		Section: "1",
		Source:  "solodeploy " + version.Version,
		Manual:  "solodeploy manual",
	}

	if err := doc.GenMan(rootCmd, header, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
