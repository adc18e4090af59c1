// Package config defines the proxy configuration model and the section
// parsers that produce it from KDL documents.
//
// Every section parser follows the same contract: context in, typed
// config value or diagnostic out. The produced values are plain
// immutable data owned by the caller; nothing in this package retains
// them.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// FQDN is a dot-separated qualified identifier, used to name filters
// (e.g. "com.example.auth"). Labels contain letters, digits and
// hyphens.
type FQDN string

// ErrInvalidFQDN is the reason reported for malformed identifiers.
var ErrInvalidFQDN = errors.New("invalid char found in FQDN")

func (f *FQDN) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		return errors.New("empty FQDN")
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" {
			return fmt.Errorf("empty label in FQDN")
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
			case r == '-' || r == '_':
			default:
				return ErrInvalidFQDN
			}
		}
	}
	*f = FQDN(s)
	return nil
}

func (f FQDN) String() string { return string(f) }

// ConfiguredFilter is one entry of a filter chain: a fully qualified
// filter name plus its string-keyed arguments.
type ConfiguredFilter struct {
	Name FQDN
	Args map[string]string
}

// FilterChain is an ordered filter sequence.
type FilterChain struct {
	Filters []ConfiguredFilter
}

// HashAlgorithm selects the cache-key hash. Seed is empty when unset.
type HashAlgorithm struct {
	Name string
	Seed string
}

// Transform is one cache-key post-processing step.
type Transform struct {
	Name   string
	Params map[string]string
}

// KeyTemplateConfig describes how a cache key is derived: a source
// template, an optional fallback template (empty when unset), the hash
// algorithm and an ordered transform sequence.
type KeyTemplateConfig struct {
	Source     string
	Fallback   string
	Algorithm  HashAlgorithm
	Transforms []Transform
}

// TLSConfig holds the certificate pair for a TLS listener.
type TLSConfig struct {
	CertPath string
	KeyPath  string
}

// ListenerConfig is one TCP listening socket, optionally terminating
// TLS and optionally offering HTTP/2 over ALPN.
type ListenerConfig struct {
	Addr    string
	TLS     *TLSConfig
	OfferH2 bool
}

// Listeners is the listener set of one service.
type Listeners []ListenerConfig

// ConnectorConfig is one upstream target. TLSSNI is empty for
// plaintext upstreams; Proto is "h1" or "h2".
type ConnectorConfig struct {
	Addr   string
	TLSSNI string
	Proto  string
}

// Connectors is the upstream set of one service plus its selection
// strategy ("round-robin" or "random").
type Connectors struct {
	Selection string
	Targets   []ConnectorConfig
}

// ProxyConfig is the full configuration of one named service.
type ProxyConfig struct {
	Name       string
	Listeners  Listeners
	Connectors Connectors
	// Filters may be empty; CacheKey is nil when the service defines
	// no cache-key profile.
	Filters  FilterChain
	CacheKey *KeyTemplateConfig
}

// ObservabilityConfig configures trace export. Collector is empty when
// tracing is disabled.
type ObservabilityConfig struct {
	TracingCollector string
	TracingInsecure  bool
	SampleRatio      float64
}

// Config is the top-level result of parsing one or more documents.
type Config struct {
	Services      []ProxyConfig
	Observability *ObservabilityConfig
}
