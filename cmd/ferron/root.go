package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags, mirroring the
// teacher's cmd/main.go version embedding; left as a plain var default
// for a source build.
var version = "dev"

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ferron",
		Short: "Ferron is a general-purpose web server core",
		Long: `Ferron is a general-purpose web server supporting HTTP/1.1, HTTP/2, and
HTTP/3, with automatic TLS via ACME, reverse proxying with load
balancing, request rewriting, and response caching.

Use 'ferron serve' to run the server in the foreground.`,
		SilenceUsage: true,
	}

	var showVersion bool
	root.Flags().BoolVarP(&showVersion, "version", "V", false, "print the version and exit")
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println("ferron " + version)
			return nil
		}
		return cmd.Help()
	}

	root.AddCommand(serveCommand())
	return root
}
