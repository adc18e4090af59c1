// Command kedge runs the kedge caching reverse proxy.
//
// Kedge terminates HTTP(S) at the edge, forwards traffic to upstream
// connectors, and serves repeated responses from a local cache keyed by
// configurable request templates.
//
// Install:
//
//	go install github.com/kedgeproxy/kedge/cmd/kedge@latest
//
// Usage:
//
//	kedge run --config ./kedge.kdl --cache-db ./.data/kedge.db
package main
