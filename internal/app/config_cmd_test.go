package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
services {
    web {
        listeners {
            "127.0.0.1:8080"
        }
        connectors {
            "10.0.0.1:9000"
        }
    }
}
`

const invalidConfig = `
services {
    web {
        listeners {
            "127.0.0.1:8080"
        }
    }
}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kedge.kdl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigValidateTextOK(t *testing.T) {
	path := writeConfig(t, validConfig)

	var stdout, stderr bytes.Buffer
	code := configValidate([]string{"--config", path}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}
	if got := stdout.String(); !strings.Contains(got, "OK (1 services)") {
		t.Errorf("stdout = %q", got)
	}
}

func TestConfigValidateTextFailure(t *testing.T) {
	path := writeConfig(t, invalidConfig)

	var stdout, stderr bytes.Buffer
	code := configValidate([]string{"--config", path}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	out := stderr.String()
	if !strings.Contains(out, "Missing required directive 'connectors'") {
		t.Errorf("stderr = %q", out)
	}
	// Text mode renders the offending source line with a caret marker.
	if !strings.Contains(out, "-->") {
		t.Errorf("stderr lacks source pointer: %q", out)
	}
}

func TestConfigValidateJSON(t *testing.T) {
	path := writeConfig(t, validConfig)

	var stdout, stderr bytes.Buffer
	code := configValidate([]string{"--config", path, "--format", "json"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr.String())
	}

	var payload validatePayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", stdout.String(), err)
	}
	if !payload.OK || payload.Services != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestConfigValidateJSONFailure(t *testing.T) {
	path := writeConfig(t, invalidConfig)

	var stdout, stderr bytes.Buffer
	code := configValidate([]string{"--config", path, "--format", "json"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}

	var payload validatePayload
	if err := json.Unmarshal(stderr.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", stderr.String(), err)
	}
	if payload.OK || len(payload.Errors) != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestConfigValidateBadFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := configValidate([]string{"--format", "yaml"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestConfigValidateMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := configValidate([]string{"--config", filepath.Join(t.TempDir(), "absent.kdl")}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}
