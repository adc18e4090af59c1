package config

import (
	"github.com/kedgeproxy/kedge/internal/schema"
)

// ChainParser extracts an ordered filter chain from a block of
// `filter` directives:
//
//	filter name="com.example.auth"
//	filter name="com.example.logger" level="debug" format="json"
type ChainParser struct{}

// Parse consumes every `filter` child of ctx. Any other directive in
// the block is rejected.
func (ChainParser) Parse(ctx *schema.Context) (FilterChain, error) {
	block, err := schema.NewBlock(ctx)
	if err != nil {
		return FilterChain{}, err
	}

	filters, err := schema.Repeated(block, "filter", func(fctx *schema.Context) (ConfiguredFilter, error) {
		if err := fctx.Validate(schema.NoChildren, schema.NoPositionalArgs); err != nil {
			return ConfiguredFilter{}, err
		}

		nameVal, err := fctx.Prop("name")
		if err != nil {
			return ConfiguredFilter{}, err
		}
		name, err := schema.ParseAs[FQDN](nameVal)
		if err != nil {
			return ConfiguredFilter{}, err
		}

		args, err := fctx.ArgsMapFrom(1)
		if err != nil {
			return ConfiguredFilter{}, err
		}

		return ConfiguredFilter{Name: name, Args: args}, nil
	})
	if err != nil {
		return FilterChain{}, err
	}

	if err := block.Exhaust(); err != nil {
		return FilterChain{}, err
	}
	return FilterChain{Filters: filters}, nil
}
