package config

import (
	"github.com/kedgeproxy/kedge/internal/kdl"
	"github.com/kedgeproxy/kedge/internal/schema"
)

// ParseDocument converts one parsed document into a Config. The
// document must carry a non-empty `services` block and may carry an
// `observability` block; anything else at the top level is rejected.
func ParseDocument(doc *kdl.Document, source string) (*Config, error) {
	root := schema.NewContext(doc, source)

	block, err := schema.NewBlock(root)
	if err != nil {
		return nil, err
	}

	services, err := schema.Required(block, "services", parseServices)
	if err != nil {
		return nil, err
	}

	obs, err := schema.Optional(block, "observability", ObservabilitySection{}.ParseNode)
	if err != nil {
		return nil, err
	}

	if err := block.Exhaust(); err != nil {
		return nil, err
	}

	return &Config{Services: services, Observability: obs}, nil
}

func parseServices(ctx *schema.Context) ([]ProxyConfig, error) {
	nodes, err := ctx.ReqNodes()
	if err != nil {
		return nil, err
	}

	out := make([]ProxyConfig, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, sctx := range nodes {
		name, err := sctx.Name()
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, sctx.Errorf(schema.KindStructural, "Duplicate service '%s'", name)
		}
		seen[name] = true

		svc, err := NewServiceSection(name).ParseNode(sctx)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}
