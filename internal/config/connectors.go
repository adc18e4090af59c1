package config

import (
	"github.com/kedgeproxy/kedge/internal/kdl"
	"github.com/kedgeproxy/kedge/internal/schema"
)

// DefaultSelection is the upstream selection strategy used when a
// connectors block names none.
const DefaultSelection = "round-robin"

var selections = []string{"round-robin", "random"}

var protos = []string{"h1", "h2"}

// ConnectorsSection parses the `connectors` block of a service. An
// optional `load-balance` directive picks the selection strategy; the
// remaining children are upstream targets named by socket address:
//
//	connectors {
//	    load-balance selection="random"
//	    "10.0.0.1:9000"
//	    "10.0.0.2:9000" tls-sni="internal.example.com" proto="h2"
//	}
type ConnectorsSection struct{}

func (s ConnectorsSection) ParseNode(ctx *schema.Context) (Connectors, error) {
	if err := ctx.ExpectName("connectors"); err != nil {
		return Connectors{}, err
	}

	nodes, err := ctx.ReqNodes()
	if err != nil {
		return Connectors{}, err
	}

	out := Connectors{Selection: DefaultSelection}
	sawLoadBalance := false
	for _, nctx := range nodes {
		name, err := nctx.Name()
		if err != nil {
			return Connectors{}, err
		}
		if name == "load-balance" {
			if sawLoadBalance {
				return Connectors{}, nctx.Errorf(schema.KindStructural,
					"Duplicate 'load-balance' directive")
			}
			sawLoadBalance = true
			sel, err := s.extractSelection(nctx)
			if err != nil {
				return Connectors{}, err
			}
			out.Selection = sel
			continue
		}

		target, err := s.extractTarget(nctx)
		if err != nil {
			return Connectors{}, err
		}
		out.Targets = append(out.Targets, target)
	}

	if len(out.Targets) == 0 {
		return Connectors{}, ctx.Errorf(schema.KindStructural,
			"Block 'connectors' needs at least one upstream address")
	}
	return out, nil
}

func (s ConnectorsSection) extractSelection(ctx *schema.Context) (string, error) {
	if err := ctx.Validate(schema.NoChildren, schema.NoPositionalArgs); err != nil {
		return "", err
	}
	opts, err := ctx.ArgsMapWithOnlyKeys(0, []string{"selection"})
	if err != nil {
		return "", err
	}
	sel := opts["selection"]
	if sel == "" {
		return DefaultSelection, nil
	}
	if !oneOf(sel, selections) {
		return "", ctx.Errorf(schema.KindFormat,
			"Invalid selection '%s'. Allowed values are: %q", sel, selections)
	}
	return sel, nil
}

func (s ConnectorsSection) extractTarget(ctx *schema.Context) (ConnectorConfig, error) {
	err := ctx.Validate(
		schema.NoChildren,
		schema.NoPositionalArgs,
		schema.OnlyKeysTyped(
			schema.KeyType{Key: "tls-sni", Kind: kdl.KindString},
			schema.KeyType{Key: "proto", Kind: kdl.KindString},
		),
		schema.NameIs(schema.SocketAddr),
	)
	if err != nil {
		return ConnectorConfig{}, err
	}

	name, err := ctx.Name()
	if err != nil {
		return ConnectorConfig{}, err
	}

	opts, err := ctx.ArgsMapFrom(0)
	if err != nil {
		return ConnectorConfig{}, err
	}

	proto := opts["proto"]
	if proto == "" {
		proto = "h1"
	} else if !oneOf(proto, protos) {
		return ConnectorConfig{}, ctx.Errorf(schema.KindFormat,
			"Invalid proto '%s'. Allowed values are: %q", proto, protos)
	}

	return ConnectorConfig{
		Addr:   name,
		TLSSNI: opts["tls-sni"],
		Proto:  proto,
	}, nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}
