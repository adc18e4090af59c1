// Package proxy runs the HTTP servers for configured services and
// forwards traffic to their upstream connectors.
package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"

	"github.com/kedgeproxy/kedge/internal/cache"
	"github.com/kedgeproxy/kedge/internal/cachekey"
	"github.com/kedgeproxy/kedge/internal/config"
)

// Options carries runtime collaborators shared by all services.
type Options struct {
	Cache          *cache.Store
	Logger         *slog.Logger
	TracingEnabled bool
}

// Service is one configured service: its listeners and the handler
// that fronts its upstreams.
type Service struct {
	name      string
	listeners config.Listeners
	handler   http.Handler
	offerH2   bool
	logger    *slog.Logger
}

// NewService builds the request path for one service config.
func NewService(cfg config.ProxyConfig, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("service", cfg.Name))

	targets := cfg.Connectors.Targets
	if len(targets) == 0 {
		return nil, fmt.Errorf("service %q has no upstream targets", cfg.Name)
	}

	upstreams := make([]*httputil.ReverseProxy, len(targets))
	for i, target := range targets {
		upstreams[i] = newUpstreamProxy(target, logger)
	}

	var handler http.Handler = &forwarder{
		picker:    newPicker(cfg.Connectors.Selection, len(targets)),
		upstreams: upstreams,
	}

	if cfg.CacheKey != nil && opts.Cache != nil {
		keyer, err := cachekey.Compile(*cfg.CacheKey)
		if err != nil {
			return nil, fmt.Errorf("service %q cache-key: %w", cfg.Name, err)
		}
		handler = &cachingHandler{
			keyer:  keyer,
			store:  opts.Cache,
			next:   handler,
			logger: logger,
		}
	}

	if opts.TracingEnabled {
		handler = otelhttp.NewHandler(handler, cfg.Name)
	}

	// Filters are configuration data only; surface them so operators can
	// see what the service declares.
	for _, f := range cfg.Filters.Filters {
		logger.Info("filter_configured", slog.String("name", string(f.Name)))
	}

	offerH2 := false
	for _, l := range cfg.Listeners {
		if l.OfferH2 {
			offerH2 = true
		}
	}

	return &Service{
		name:      cfg.Name,
		listeners: cfg.Listeners,
		handler:   handler,
		offerH2:   offerH2,
		logger:    logger,
	}, nil
}

// Runtime owns the http servers for all services.
type Runtime struct {
	services []*Service
	logger   *slog.Logger
}

func NewRuntime(cfgs []config.ProxyConfig, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	services := make([]*Service, 0, len(cfgs))
	for _, cfg := range cfgs {
		svc, err := NewService(cfg, opts)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return &Runtime{services: services, logger: logger}, nil
}

// Run starts every listener and blocks until ctx is canceled or a
// listener fails to start, then shuts the servers down.
func (rt *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var servers []*http.Server
	for _, svc := range rt.services {
		for _, l := range svc.listeners {
			srv, ln, err := svc.listen(l)
			if err != nil {
				closeServers(servers)
				return err
			}
			servers = append(servers, srv)
			serveOnListener(svc.logger, l.Addr, srv, ln, cancel)
			svc.logger.Info("listening",
				slog.String("addr", l.Addr),
				slog.Bool("tls", l.TLS != nil),
				slog.Bool("h2", l.OfferH2),
			)
		}
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	wg.Wait()
	return nil
}

func (svc *Service) listen(l config.ListenerConfig) (*http.Server, net.Listener, error) {
	srv := &http.Server{
		Addr:    l.Addr,
		Handler: svc.handler,
	}

	if l.TLS == nil {
		ln, err := net.Listen("tcp", l.Addr)
		if err != nil {
			return nil, nil, fmt.Errorf("listen %q: %w", l.Addr, err)
		}
		return srv, ln, nil
	}

	tlsCfg, err := buildTLSConfig(*l.TLS)
	if err != nil {
		return nil, nil, fmt.Errorf("listener %q tls: %w", l.Addr, err)
	}
	srv.TLSConfig = tlsCfg
	if l.OfferH2 {
		if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
			return nil, nil, fmt.Errorf("listener %q h2: %w", l.Addr, err)
		}
	}

	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %q: %w", l.Addr, err)
	}
	return srv, tls.NewListener(ln, srv.TLSConfig), nil
}

func buildTLSConfig(tlsCfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(tlsCfg.CertPath, tlsCfg.KeyPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func serveOnListener(logger *slog.Logger, name string, srv *http.Server, ln net.Listener, cancel func()) {
	go func() {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("http_server_error", slog.String("listener", name), slog.Any("err", err))
		if cancel != nil {
			cancel()
		}
	}()
}

func closeServers(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(ctx)
	}
}

// forwarder proxies each request to one upstream chosen by the picker.
type forwarder struct {
	picker    picker
	upstreams []*httputil.ReverseProxy
}

func (f *forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.upstreams[f.picker.pick()].ServeHTTP(w, r)
}

func newUpstreamProxy(target config.ConnectorConfig, logger *slog.Logger) *httputil.ReverseProxy {
	scheme := "http"
	transport := http.DefaultTransport
	if target.TLSSNI != "" {
		scheme = "https"
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{
			ServerName: target.TLSSNI,
			MinVersion: tls.VersionTLS12,
		}
		t.ForceAttemptHTTP2 = target.Proto == "h2"
		transport = t
	}

	dst := &url.URL{Scheme: scheme, Host: target.Addr}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(dst)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream_error",
				slog.String("upstream", target.Addr),
				slog.Any("err", err),
			)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

// cachingHandler serves GET responses from the cache and stores
// successful upstream responses on a miss.
type cachingHandler struct {
	keyer  *cachekey.Keyer
	store  *cache.Store
	next   http.Handler
	logger *slog.Logger
}

func (h *cachingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.next.ServeHTTP(w, r)
		return
	}

	key := h.keyer.Key(r)

	entry, ok, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.logger.Warn("cache_get_failed", slog.Any("err", err))
	}
	if ok {
		copyHeader(w.Header(), entry.Header)
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
		return
	}

	rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
	rec.Header().Set("X-Cache", "MISS")
	h.next.ServeHTTP(rec, r)

	if rec.status != http.StatusOK {
		return
	}
	header := w.Header().Clone()
	header.Del("X-Cache")
	err = h.store.Put(r.Context(), key, &cache.Entry{
		Status: rec.status,
		Header: header,
		Body:   rec.body.Bytes(),
	})
	if err != nil {
		h.logger.Warn("cache_put_failed", slog.Any("err", err))
	}
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// responseRecorder tees the response body so it can be cached after
// streaming to the client.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Handler exposes the service's request path, for tests and embedding.
func (svc *Service) Handler() http.Handler { return svc.handler }
