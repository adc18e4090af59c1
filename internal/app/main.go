// Package app implements the kedge command line interface.
package app

import (
	"fmt"
	"os"
)

var (
	version   = "0.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func Main(args []string) int {
	if len(args) < 2 {
		printHelp()
		return 2
	}

	switch args[1] {
	case "run":
		return run(args[2:])
	case "config":
		return configCmd(args[2:])
	case "version":
		return versionCmd(args[2:])
	case "help", "-h", "--help":
		printHelp()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[1])
		printHelp()
		return 2
	}
}

func printHelp() {
	fmt.Fprintln(os.Stdout, "kedge")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Usage:")
	fmt.Fprintln(os.Stdout, "  kedge run --config ./kedge.kdl [--cache-db ./.data/kedge.db] [--cache-ttl 5m] [--log-level info]")
	fmt.Fprintln(os.Stdout, "  kedge config validate --config ./kedge.kdl --format json|text")
	fmt.Fprintln(os.Stdout, "  kedge version [--long] [--json]")
}
