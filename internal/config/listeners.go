package config

import (
	"net/netip"

	"github.com/kedgeproxy/kedge/internal/kdl"
	"github.com/kedgeproxy/kedge/internal/schema"
)

// ListenersSection parses the `listeners` block of a service. Each
// child is named by its socket address:
//
//	listeners {
//	    "0.0.0.0:8080"
//	    "0.0.0.0:8443" cert-path="./c.pem" key-path="./k.pem" offer-h2=#false
//	}
type ListenersSection struct{}

func (s ListenersSection) ParseNode(ctx *schema.Context) (Listeners, error) {
	if err := ctx.ExpectName("listeners"); err != nil {
		return nil, err
	}

	nodes, err := ctx.ReqNodes()
	if err != nil {
		return nil, err
	}

	out := make(Listeners, 0, len(nodes))
	for _, nctx := range nodes {
		cfg, err := s.extractListener(nctx)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s ListenersSection) extractListener(ctx *schema.Context) (ListenerConfig, error) {
	err := ctx.Validate(
		schema.NoChildren,
		schema.NoPositionalArgs,
		schema.OnlyKeysTyped(
			schema.KeyType{Key: "cert-path", Kind: kdl.KindString},
			schema.KeyType{Key: "key-path", Kind: kdl.KindString},
			schema.KeyType{Key: "offer-h2", Kind: kdl.KindBool},
		),
		schema.NameIs(schema.SocketAddr),
	)
	if err != nil {
		return ListenerConfig{}, err
	}

	name, err := ctx.Name()
	if err != nil {
		return ListenerConfig{}, err
	}
	addr := netip.MustParseAddrPort(name) // validated by the name rule

	props, err := ctx.Props("cert-path", "key-path", "offer-h2")
	if err != nil {
		return ListenerConfig{}, err
	}
	certPath, err := schema.OptString(props[0])
	if err != nil {
		return ListenerConfig{}, err
	}
	keyPath, err := schema.OptString(props[1])
	if err != nil {
		return ListenerConfig{}, err
	}
	offerH2, err := schema.OptBool(props[2])
	if err != nil {
		return ListenerConfig{}, err
	}

	return s.resolveTCPListener(ctx, addr, certPath, keyPath, offerH2)
}

// resolveTCPListener enforces the cert/key/h2 dependency rules:
// both paths present enables TLS (h2 defaults to true), both absent is
// a plain TCP listener, and anything else is a configuration conflict.
func (s ListenersSection) resolveTCPListener(
	ctx *schema.Context,
	addr netip.AddrPort,
	certPath, keyPath *string,
	offerH2 *bool,
) (ListenerConfig, error) {
	switch {
	case certPath == nil && keyPath == nil && offerH2 == nil:
		return ListenerConfig{Addr: addr.String()}, nil

	case certPath == nil && keyPath != nil, certPath != nil && keyPath == nil:
		return ListenerConfig{}, ctx.Errorf(schema.KindMutualExclusion,
			"'cert-path' and 'key-path' must either BOTH be present, or NEITHER should be present")

	case certPath == nil && keyPath == nil:
		return ListenerConfig{}, ctx.Errorf(schema.KindMutualExclusion,
			"'offer-h2' requires TLS, specify 'cert-path' and 'key-path'")

	default:
		h2 := true
		if offerH2 != nil {
			h2 = *offerH2
		}
		return ListenerConfig{
			Addr:    addr.String(),
			TLS:     &TLSConfig{CertPath: *certPath, KeyPath: *keyPath},
			OfferH2: h2,
		}, nil
	}
}
