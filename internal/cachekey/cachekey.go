// Package cachekey turns a parsed key-template profile into a function
// that derives cache keys from incoming requests.
package cachekey

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kedgeproxy/kedge/internal/config"
	"github.com/kedgeproxy/kedge/internal/httpheader"
)

// Keyer derives cache keys per a compiled profile. Safe for concurrent
// use; it holds no per-request state.
type Keyer struct {
	source     string
	fallback   string
	transforms []transform
	hash       func(string) string
}

type transform func(string) string

// Compile validates and compiles a key-template profile. Unknown
// transform names and malformed transform parameters fail here, not
// per request.
func Compile(cfg config.KeyTemplateConfig) (*Keyer, error) {
	k := &Keyer{source: cfg.Source, fallback: cfg.Fallback}

	if err := validateTemplate(cfg.Source); err != nil {
		return nil, fmt.Errorf("key template: %w", err)
	}
	if err := validateTemplate(cfg.Fallback); err != nil {
		return nil, fmt.Errorf("fallback template: %w", err)
	}

	for _, tr := range cfg.Transforms {
		fn, err := compileTransform(tr)
		if err != nil {
			return nil, err
		}
		k.transforms = append(k.transforms, fn)
	}

	hash, err := compileHash(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	k.hash = hash

	return k, nil
}

// Key renders the template for r, applies the transforms and hashes
// the result. The fallback template is used when the source template
// renders empty.
func (k *Keyer) Key(r *http.Request) string {
	raw := renderTemplate(k.source, r)
	if raw == "" && k.fallback != "" {
		raw = renderTemplate(k.fallback, r)
	}
	for _, fn := range k.transforms {
		raw = fn(raw)
	}
	return k.hash(raw)
}

func compileTransform(tr config.Transform) (transform, error) {
	switch tr.Name {
	case "lowercase":
		return strings.ToLower, nil
	case "remove-query-params":
		return func(s string) string {
			if i := strings.IndexByte(s, '?'); i >= 0 {
				return s[:i]
			}
			return s
		}, nil
	case "truncate":
		raw, ok := tr.Params["length"]
		if !ok {
			return nil, fmt.Errorf("transform 'truncate' needs a 'length' parameter")
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("transform 'truncate': invalid length %q", raw)
		}
		return func(s string) string {
			if len(s) > n {
				return s[:n]
			}
			return s
		}, nil
	default:
		return nil, fmt.Errorf("unknown transform %q", tr.Name)
	}
}

func compileHash(algo config.HashAlgorithm) (func(string) string, error) {
	var seed uint64
	if algo.Seed != "" {
		seed = xxhash.Sum64String(algo.Seed)
	}

	sum := func(s string) uint64 {
		if seed == 0 {
			return xxhash.Sum64String(s)
		}
		d := xxhash.NewWithSeed(seed)
		_, _ = d.WriteString(s)
		return d.Sum64()
	}

	switch algo.Name {
	case "xxhash64":
		return func(s string) string {
			return strconv.FormatUint(sum(s), 16)
		}, nil
	case "xxhash32":
		// The library is 64-bit only; fold the halves.
		return func(s string) string {
			h := sum(s)
			return strconv.FormatUint(uint64(uint32(h)^uint32(h>>32)), 16)
		}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algo.Name)
	}
}

// validateTemplate rejects header placeholders whose field name could
// never match a request header.
func validateTemplate(tpl string) error {
	for i := 0; i < len(tpl); {
		if !strings.HasPrefix(tpl[i:], "${") {
			i++
			continue
		}
		end := strings.IndexByte(tpl[i+2:], '}')
		if end == -1 {
			break
		}
		name := tpl[i+2 : i+2+end]
		if strings.HasPrefix(name, "header:") {
			if err := httpheader.ValidateName(name[len("header:"):]); err != nil {
				return err
			}
		}
		i += 2 + end + 1
	}
	return nil
}

// renderTemplate substitutes ${...} placeholders from the request.
// Unresolvable placeholders render empty.
func renderTemplate(tpl string, r *http.Request) string {
	var out strings.Builder
	out.Grow(len(tpl))

	for i := 0; i < len(tpl); {
		if strings.HasPrefix(tpl[i:], "${") {
			end := strings.IndexByte(tpl[i+2:], '}')
			if end == -1 {
				out.WriteString(tpl[i:])
				break
			}
			name := tpl[i+2 : i+2+end]
			out.WriteString(placeholder(name, r))
			i += 2 + end + 1
			continue
		}
		out.WriteByte(tpl[i])
		i++
	}
	return out.String()
}

func placeholder(name string, r *http.Request) string {
	switch {
	case name == "uri_path":
		return r.URL.Path
	case name == "query":
		return r.URL.RawQuery
	case name == "method":
		return r.Method
	case name == "host":
		return r.Host
	case name == "user_agent":
		return r.UserAgent()
	case name == "client_ip":
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	case strings.HasPrefix(name, "header:"):
		return r.Header.Get(name[len("header:"):])
	case strings.HasPrefix(name, "cookie:"):
		c, err := r.Cookie(name[len("cookie:"):])
		if err != nil {
			return ""
		}
		return c.Value
	default:
		return ""
	}
}
