package config

import (
	"testing"
)

func TestKeyProfile_Full(t *testing.T) {
	in := `
key "${cookie_session}" fallback="${client_ip}:${user_agent}"
algorithm name="xxhash32" seed="idk"
transforms-order {
    remove-query-params
    lowercase
    truncate length="256"
}
`
	tpl, err := KeyProfileParser{}.Parse(docCtx(t, in))
	if err != nil {
		t.Fatalf("parse profile: %v", err)
	}

	if tpl.Source != "${cookie_session}" {
		t.Fatalf("unexpected source %q", tpl.Source)
	}
	if tpl.Fallback != "${client_ip}:${user_agent}" {
		t.Fatalf("unexpected fallback %q", tpl.Fallback)
	}
	if tpl.Algorithm.Name != "xxhash32" || tpl.Algorithm.Seed != "idk" {
		t.Fatalf("unexpected algorithm %+v", tpl.Algorithm)
	}

	if len(tpl.Transforms) != 3 {
		t.Fatalf("expected 3 transforms, got %d", len(tpl.Transforms))
	}
	names := []string{"remove-query-params", "lowercase", "truncate"}
	for i, want := range names {
		if tpl.Transforms[i].Name != want {
			t.Fatalf("transform %d = %q, want %q", i, tpl.Transforms[i].Name, want)
		}
	}
	if tpl.Transforms[2].Params["length"] != "256" {
		t.Fatalf("unexpected truncate params: %v", tpl.Transforms[2].Params)
	}
}

func TestKeyProfile_MinimalDefaults(t *testing.T) {
	tpl, err := KeyProfileParser{}.Parse(docCtx(t, `key "${uri_path}"`))
	if err != nil {
		t.Fatalf("parse profile: %v", err)
	}

	if tpl.Source != "${uri_path}" {
		t.Fatalf("unexpected source %q", tpl.Source)
	}
	if tpl.Fallback != "" {
		t.Fatalf("expected no fallback, got %q", tpl.Fallback)
	}
	if tpl.Algorithm.Name != "xxhash64" {
		t.Fatalf("expected default algorithm, got %q", tpl.Algorithm.Name)
	}
	if tpl.Algorithm.Seed != "" {
		t.Fatalf("expected no seed, got %q", tpl.Algorithm.Seed)
	}
	if len(tpl.Transforms) != 0 {
		t.Fatalf("expected no transforms, got %d", len(tpl.Transforms))
	}
}

func TestKeyProfile_MissingKey(t *testing.T) {
	_, err := KeyProfileParser{}.Parse(docCtx(t, `algorithm name="xxhash32"`))
	wantErrContains(t, err, "Missing required directive 'key'")
}

func TestKeyProfile_UnknownKeyOnKeyDirective(t *testing.T) {
	_, err := KeyProfileParser{}.Parse(docCtx(t, `key "${uri_path}" fallbck="${host}"`))
	wantErrContains(t, err, "Unknown configuration key: 'fallbck'")
}

func TestKeyProfile_AlgorithmDefaultsNameWhenOnlySeed(t *testing.T) {
	tpl, err := KeyProfileParser{}.Parse(docCtx(t, "key \"${uri_path}\"\nalgorithm seed=\"s\"\n"))
	if err != nil {
		t.Fatalf("parse profile: %v", err)
	}
	if tpl.Algorithm.Name != "xxhash64" || tpl.Algorithm.Seed != "s" {
		t.Fatalf("unexpected algorithm %+v", tpl.Algorithm)
	}
}

func TestKeyProfile_AlgorithmEmptyNameIsKept(t *testing.T) {
	tpl, err := KeyProfileParser{}.Parse(docCtx(t, "key \"${uri_path}\"\nalgorithm name=\"\"\n"))
	if err != nil {
		t.Fatalf("parse profile: %v", err)
	}
	// An explicit empty name must not silently become the default; it
	// fails later as an unknown algorithm.
	if tpl.Algorithm.Name != "" {
		t.Fatalf("unexpected algorithm %+v", tpl.Algorithm)
	}
}

func TestKeyProfile_UnknownDirective(t *testing.T) {
	_, err := KeyProfileParser{}.Parse(docCtx(t, "key \"${uri_path}\"\nalgoritm name=\"x\"\n"))
	wantErrContains(t, err, "Unknown directive: 'algoritm'")
}
