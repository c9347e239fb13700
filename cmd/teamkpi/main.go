/*
Package main is the entry point for the teamkpi binary.

Usage:

	teamkpi [command]

Available Commands:

	serve       Run the KPI API server
	migrate     Manage the source and directory schema
	report      Print agent rankings for a date window

Configuration is read from the environment and an optional .env file;
see internal/config for the variables.
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lorrc/team-kpi-backend/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := cli.NewRootCmd(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
