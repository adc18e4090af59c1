package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestFQDN_UnmarshalText(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"com.example.auth", true},
		{"single", true},
		{"with-dash.and_underscore", true},
		{"invalid name with spaces", false},
		{"", false},
		{"double..dot", false},
		{"trailing.", false},
	}
	for _, tc := range cases {
		var f FQDN
		err := f.UnmarshalText([]byte(tc.in))
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
		if tc.ok && f.String() != tc.in {
			t.Fatalf("%q: round-trip mismatch %q", tc.in, f)
		}
	}
}

// encodeKeyProfile renders a profile back to its directive form using
// the same key names the parser consumes.
func encodeKeyProfile(tpl KeyTemplateConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "key %q", tpl.Source)
	if tpl.Fallback != "" {
		fmt.Fprintf(&b, " fallback=%q", tpl.Fallback)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "algorithm name=%q", tpl.Algorithm.Name)
	if tpl.Algorithm.Seed != "" {
		fmt.Fprintf(&b, " seed=%q", tpl.Algorithm.Seed)
	}
	b.WriteString("\n")
	if len(tpl.Transforms) > 0 {
		b.WriteString("transforms-order {\n")
		for _, tr := range tpl.Transforms {
			b.WriteString("    " + tr.Name)
			keys := make([]string, 0, len(tr.Params))
			for k := range tr.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%q", k, tr.Params[k])
			}
			b.WriteString("\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func TestKeyProfile_RoundTrip(t *testing.T) {
	in := `
key "${cookie_session}" fallback="${client_ip}"
algorithm name="xxhash32" seed="idk"
transforms-order {
    lowercase
    truncate length="256"
}
`
	first, err := KeyProfileParser{}.Parse(docCtx(t, in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	second, err := KeyProfileParser{}.Parse(docCtx(t, encodeKeyProfile(first)))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", first, second)
	}
}

func TestListeners_RoundTrip(t *testing.T) {
	encode := func(ls Listeners) string {
		var b strings.Builder
		b.WriteString("listeners {\n")
		for _, l := range ls {
			fmt.Fprintf(&b, "    %q", l.Addr)
			if l.TLS != nil {
				fmt.Fprintf(&b, " cert-path=%q key-path=%q", l.TLS.CertPath, l.TLS.KeyPath)
				fmt.Fprintf(&b, " offer-h2=#%t", l.OfferH2)
			}
			b.WriteString("\n")
		}
		b.WriteString("}\n")
		return b.String()
	}

	in := `
listeners {
    "0.0.0.0:8080"
    "0.0.0.0:8443" cert-path="./c.pem" key-path="./k.pem" offer-h2=#false
}
`
	first, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	second, err := ListenersSection{}.ParseNode(listenersCtx(t, encode(first)))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", first, second)
	}
}
