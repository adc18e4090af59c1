package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kedgeproxy/kedge/internal/config"
	"github.com/kedgeproxy/kedge/internal/schema"
)

func configCmd(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "missing subcommand: validate")
		return 2
	}

	switch args[0] {
	case "validate":
		return configValidate(args[1:], os.Stdout, os.Stderr)
	default:
		fmt.Fprintf(os.Stderr, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}

type validatePayload struct {
	OK       bool     `json:"ok"`
	Services int      `json:"services,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func configValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "./kedge.kdl", "path to config file or directory of .kdl files")
	format := fs.String("format", "text", "output format: json|text")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *format != "json" && *format != "text" {
		fmt.Fprintf(stderr, "invalid --format %q (use: json|text)\n", *format)
		return 2
	}

	cfg, err := config.Load(context.Background(), config.FileSource{}, *configPath)
	if err != nil {
		msg := err.Error()
		// Diagnostics carry a source snippet worth showing in text mode.
		var diag *schema.Diag
		if *format == "text" && errors.As(err, &diag) {
			msg = diag.Error() + "\n" + diag.Help()
		}
		return validateReport(*format, stdout, stderr, validatePayload{
			OK:     false,
			Errors: []string{msg},
		})
	}

	return validateReport(*format, stdout, stderr, validatePayload{
		OK:       true,
		Services: len(cfg.Services),
	})
}

func validateReport(format string, stdout, stderr io.Writer, payload validatePayload) int {
	out := stdout
	code := 0
	if !payload.OK {
		out = stderr
		code = 1
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		if err := enc.Encode(payload); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		return code
	}

	if payload.OK {
		fmt.Fprintf(out, "OK (%d services)\n", payload.Services)
		return 0
	}
	for _, msg := range payload.Errors {
		fmt.Fprintln(out, msg)
	}
	return code
}
