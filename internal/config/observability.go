package config

import (
	"github.com/kedgeproxy/kedge/internal/kdl"
	"github.com/kedgeproxy/kedge/internal/schema"
)

// ObservabilitySection parses the optional top-level block:
//
//	observability {
//	    tracing collector="https://otel.example.com" insecure=#false sample-ratio=0.25
//	}
type ObservabilitySection struct{}

func (ObservabilitySection) ParseNode(ctx *schema.Context) (ObservabilityConfig, error) {
	block, err := schema.NewBlock(ctx)
	if err != nil {
		return ObservabilityConfig{}, err
	}

	cfg := ObservabilityConfig{SampleRatio: 1}

	tracing, err := schema.Optional(block, "tracing", func(tctx *schema.Context) (ObservabilityConfig, error) {
		err := tctx.Validate(
			schema.NoChildren,
			schema.NoPositionalArgs,
			schema.OnlyKeysTyped(
				schema.KeyType{Key: "collector", Kind: kdl.KindString},
				schema.KeyType{Key: "insecure", Kind: kdl.KindBool},
				schema.KeyType{Key: "sample-ratio", Kind: kdl.KindFloat},
			),
		)
		if err != nil {
			return ObservabilityConfig{}, err
		}

		out := ObservabilityConfig{SampleRatio: 1}

		collector, err := tctx.Prop("collector")
		if err != nil {
			return ObservabilityConfig{}, err
		}
		out.TracingCollector, err = collector.AsString()
		if err != nil {
			return ObservabilityConfig{}, err
		}

		insecure, err := tctx.OptProp("insecure")
		if err != nil {
			return ObservabilityConfig{}, err
		}
		if v, err := schema.OptBool(insecure); err != nil {
			return ObservabilityConfig{}, err
		} else if v != nil {
			out.TracingInsecure = *v
		}

		ratio, err := tctx.OptProp("sample-ratio")
		if err != nil {
			return ObservabilityConfig{}, err
		}
		if v, err := schema.OptFloat(ratio); err != nil {
			return ObservabilityConfig{}, err
		} else if v != nil {
			if *v < 0 || *v > 1 {
				return ObservabilityConfig{}, tctx.ErrorAt(schema.KindFormat, ratio.Span(),
					"Invalid sample-ratio %v: must be between 0 and 1", *v)
			}
			out.SampleRatio = *v
		}

		return out, nil
	})
	if err != nil {
		return ObservabilityConfig{}, err
	}
	if tracing != nil {
		cfg = *tracing
	}

	if err := block.Exhaust(); err != nil {
		return ObservabilityConfig{}, err
	}
	return cfg, nil
}
