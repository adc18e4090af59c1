package config

import (
	"testing"

	"github.com/kedgeproxy/kedge/internal/schema"
)

func listenersCtx(t *testing.T, input string) *schema.Context {
	t.Helper()
	nodes, err := docCtx(t, input).Nodes()
	if err != nil {
		t.Fatalf("nodes: %v", err)
	}
	return nodes[0]
}

func TestListeners_PlainTCP(t *testing.T) {
	in := `listeners { "127.0.0.1:8080" }`
	ls, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	if err != nil {
		t.Fatalf("parse listeners: %v", err)
	}
	if len(ls) != 1 {
		t.Fatalf("expected 1 listener, got %d", len(ls))
	}
	l := ls[0]
	if l.Addr != "127.0.0.1:8080" || l.TLS != nil || l.OfferH2 {
		t.Fatalf("unexpected listener %+v", l)
	}
}

func TestListeners_TLSDefaultsH2True(t *testing.T) {
	in := `listeners { "127.0.0.1:8443" cert-path="./c.pem" key-path="./k.pem" }`
	ls, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	if err != nil {
		t.Fatalf("parse listeners: %v", err)
	}
	l := ls[0]
	if l.TLS == nil {
		t.Fatalf("expected TLS config")
	}
	if l.TLS.CertPath != "./c.pem" || l.TLS.KeyPath != "./k.pem" {
		t.Fatalf("unexpected TLS config %+v", l.TLS)
	}
	if !l.OfferH2 {
		t.Fatalf("h2 should default to true with TLS")
	}
}

func TestListeners_TLSWithH2Disabled(t *testing.T) {
	in := `listeners { "127.0.0.1:8443" cert-path="./c.pem" key-path="./k.pem" offer-h2=#false }`
	ls, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	if err != nil {
		t.Fatalf("parse listeners: %v", err)
	}
	if ls[0].TLS == nil || ls[0].OfferH2 {
		t.Fatalf("unexpected listener %+v", ls[0])
	}
}

func TestListeners_CertWithoutKey(t *testing.T) {
	in := `listeners { "127.0.0.1:8443" cert-path="./c.pem" }`
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	wantErrContains(t, err, "'cert-path' and 'key-path' must either BOTH be present")
}

func TestListeners_KeyWithoutCert(t *testing.T) {
	in := `listeners { "127.0.0.1:8443" key-path="./k.pem" }`
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	wantErrContains(t, err, "'cert-path' and 'key-path' must either BOTH be present")
}

func TestListeners_H2WithoutTLS(t *testing.T) {
	in := `listeners { "127.0.0.1:8080" offer-h2=#true }`
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	wantErrContains(t, err, "'offer-h2' requires TLS")
}

func TestListeners_EmptyBlock(t *testing.T) {
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, `listeners { }`))
	wantErrContains(t, err, "Block 'listeners' cannot be empty")
}

func TestListeners_NameMustBeSocketAddr(t *testing.T) {
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, `listeners { "not-an-address" }`))
	wantErrContains(t, err, "is not a socket address")
}

func TestListeners_UnknownKey(t *testing.T) {
	in := `listeners { "127.0.0.1:8080" certpath="./c.pem" }`
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	wantErrContains(t, err, "Unknown configuration key: 'certpath'")
}

func TestListeners_OfferH2TypeMismatch(t *testing.T) {
	in := `listeners { "127.0.0.1:8080" offer-h2="yes" }`
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, in))
	wantErrContains(t, err, "Expected Boolean for key 'offer-h2'")
}

func TestListeners_WrongNodeName(t *testing.T) {
	_, err := ListenersSection{}.ParseNode(listenersCtx(t, `connectors { "127.0.0.1:80" }`))
	wantErrContains(t, err, "Expected 'listeners', found 'connectors'")
}
