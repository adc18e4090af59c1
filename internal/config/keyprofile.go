package config

import (
	"github.com/kedgeproxy/kedge/internal/schema"
)

// DefaultHashAlgorithm is used when a profile names no algorithm.
const DefaultHashAlgorithm = "xxhash64"

// KeyProfileParser extracts a cache-key template profile:
//
//	key "${cookie_session}" fallback="${client_ip}:${user_agent}"
//	algorithm name="xxhash32" seed="idk"
//	transforms-order {
//	    remove-query-params
//	    lowercase
//	    truncate length="256"
//	}
//
// Only `key` is required; the algorithm defaults to xxhash64 with no
// seed and the transform list defaults to empty.
type KeyProfileParser struct{}

type keySource struct {
	source   string
	fallback string
}

func (KeyProfileParser) Parse(ctx *schema.Context) (KeyTemplateConfig, error) {
	block, err := schema.NewBlock(ctx)
	if err != nil {
		return KeyTemplateConfig{}, err
	}

	key, err := schema.Required(block, "key", func(kctx *schema.Context) (keySource, error) {
		first, err := kctx.First()
		if err != nil {
			return keySource{}, err
		}
		source, err := first.AsString()
		if err != nil {
			return keySource{}, err
		}

		opts, err := kctx.ArgsMapWithOnlyKeys(1, []string{"fallback"})
		if err != nil {
			return keySource{}, err
		}
		return keySource{source: source, fallback: opts["fallback"]}, nil
	})
	if err != nil {
		return KeyTemplateConfig{}, err
	}

	algorithm, err := schema.Optional(block, "algorithm", func(actx *schema.Context) (HashAlgorithm, error) {
		opts, err := actx.ArgsMapWithOnlyKeys(0, []string{"name", "seed"})
		if err != nil {
			return HashAlgorithm{}, err
		}
		// Only an absent name defaults; an explicit empty name is kept
		// and rejected downstream as an unknown algorithm.
		name, named := opts["name"]
		if !named {
			name = DefaultHashAlgorithm
		}
		return HashAlgorithm{Name: name, Seed: opts["seed"]}, nil
	})
	if err != nil {
		return KeyTemplateConfig{}, err
	}
	if algorithm == nil {
		algorithm = &HashAlgorithm{Name: DefaultHashAlgorithm}
	}

	transforms, err := schema.Optional(block, "transforms-order", func(tctx *schema.Context) ([]Transform, error) {
		steps := []Transform{}
		nodes, err := tctx.Nodes()
		if err != nil {
			return nil, err
		}
		for _, step := range nodes {
			name, err := step.Name()
			if err != nil {
				return nil, err
			}
			params, err := step.ArgsMapFrom(0)
			if err != nil {
				return nil, err
			}
			steps = append(steps, Transform{Name: name, Params: params})
		}
		return steps, nil
	})
	if err != nil {
		return KeyTemplateConfig{}, err
	}

	if err := block.Exhaust(); err != nil {
		return KeyTemplateConfig{}, err
	}

	cfg := KeyTemplateConfig{
		Source:    key.source,
		Fallback:  key.fallback,
		Algorithm: *algorithm,
	}
	if transforms != nil {
		cfg.Transforms = *transforms
	}
	return cfg, nil
}
