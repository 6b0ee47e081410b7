// Command ferron is the thin CLI entry point for the ferron-core server
// (spec §6: "External interfaces... CLI subset realized with
// spf13/cobra + spf13/pflag"). Grounded on the teacher's
// cmd/caddy2/main.go + cmd/cobra.go, adapted from Caddy's admin-API-
// driven lifecycle to a direct, config-file-driven `serve` subcommand
// since the admin API is out of this core's scope.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
