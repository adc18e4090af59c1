package config

import (
	"github.com/kedgeproxy/kedge/internal/schema"
)

// ServiceSection parses one named service node. It owns no domain
// knowledge of its own: it locates the section sub-contexts and
// delegates to the injected section parsers, merging their outputs.
// The first failing section aborts the service.
type ServiceSection struct {
	Listeners  SectionParser[Listeners]
	Connectors SectionParser[Connectors]
	Name       string
}

// NewServiceSection wires the default section parsers for a service
// with the given name.
func NewServiceSection(name string) ServiceSection {
	return ServiceSection{
		Listeners:  ListenersSection{},
		Connectors: ConnectorsSection{},
		Name:       name,
	}
}

func (s ServiceSection) ParseNode(ctx *schema.Context) (ProxyConfig, error) {
	if err := ctx.Validate(schema.NoPositionalArgs, schema.OnlyKeysTyped()); err != nil {
		return ProxyConfig{}, err
	}

	block, err := schema.NewBlock(ctx)
	if err != nil {
		return ProxyConfig{}, err
	}

	listeners, err := schema.Required(block, "listeners", s.Listeners.ParseNode)
	if err != nil {
		return ProxyConfig{}, err
	}

	connectors, err := schema.Required(block, "connectors", s.Connectors.ParseNode)
	if err != nil {
		return ProxyConfig{}, err
	}

	filters, err := schema.Optional(block, "filter-chain", func(fctx *schema.Context) (FilterChain, error) {
		return ChainParser{}.Parse(fctx)
	})
	if err != nil {
		return ProxyConfig{}, err
	}

	cacheKey, err := schema.Optional(block, "cache-key", func(kctx *schema.Context) (KeyTemplateConfig, error) {
		return KeyProfileParser{}.Parse(kctx)
	})
	if err != nil {
		return ProxyConfig{}, err
	}

	if err := block.Exhaust(); err != nil {
		return ProxyConfig{}, err
	}

	cfg := ProxyConfig{
		Name:       s.Name,
		Listeners:  listeners,
		Connectors: connectors,
		CacheKey:   cacheKey,
	}
	if filters != nil {
		cfg.Filters = *filters
	}
	return cfg, nil
}
