package app

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
)

// buildInfo is the resolved build identity reported by `kedge version`.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// resolveBuildInfo prefers linker-injected values and falls back to the
// VCS metadata the toolchain stamps into the binary.
func resolveBuildInfo() buildInfo {
	info := buildInfo{
		Version:   strings.TrimSpace(version),
		Commit:    strings.TrimSpace(commit),
		BuildDate: strings.TrimSpace(buildDate),
		GoVersion: runtime.Version(),
	}
	if info.Commit != "unknown" {
		return info
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

func versionCmd(args []string) int {
	return runVersionCmd(args, os.Stdout, os.Stderr)
}

func runVersionCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	longOutput := fs.Bool("long", false, "")
	jsonOutput := fs.Bool("json", false, "")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "version: %v\n", err)
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "version: unexpected positional arguments")
		return 2
	}

	info := resolveBuildInfo()

	switch {
	case *jsonOutput:
		if err := json.NewEncoder(stdout).Encode(info); err != nil {
			fmt.Fprintf(stderr, "version: %v\n", err)
			return 1
		}
	case *longOutput:
		fmt.Fprintf(stdout, "kedge %s (commit=%s, build_date=%s, %s)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion)
	default:
		fmt.Fprintln(stdout, info.Version)
	}
	return 0
}
