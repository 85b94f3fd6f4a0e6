package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "docminer %s\n", Version)
			fmt.Fprintf(a.stdout, "  Go:     %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "  Commit: %s\n", Commit)
		},
	}
}
