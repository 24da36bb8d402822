package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/proxy"

	"github.com/nao1215/harvester/internal/config"
)

// defaultMaxRedirects bounds redirect chains.
const defaultMaxRedirects = 10

// probeTimeout bounds the proxy reachability check.
const probeTimeout = 2 * time.Second

// Options describes how to build an HTTP client.
type Options struct {
	// Timeout bounds a single request, including reading the body.
	// Zero means no timeout.
	Timeout time.Duration

	// ProxyAddress is a SOCKS5 proxy in host:port form. Empty means direct.
	ProxyAddress string

	// MaxRedirects is the longest redirect chain followed. After that the
	// last redirect response is returned as is.
	MaxRedirects int

	// InsecureSkipVerify disables TLS certificate checks. Onion services
	// commonly use self-signed certificates; the onion address already
	// authenticates the service.
	InsecureSkipVerify bool
}

// DefaultOptions returns direct-connection options with the default timeout.
func DefaultOptions() Options {
	return Options{
		Timeout:      config.DefaultTimeout,
		MaxRedirects: defaultMaxRedirects,
	}
}

// Proxied reports whether requests go through a SOCKS5 proxy.
func (o Options) Proxied() bool {
	return o.ProxyAddress != ""
}

// NewHTTPClient builds a client from opts.
//
// Design decision: the client carries no default headers. The crawler sets
// User-Agent per request, so one client can serve units with different
// agents.
func NewHTTPClient(opts Options) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("unexpected default transport %T", http.DefaultTransport)
	}
	tr := base.Clone()

	if opts.Proxied() {
		if !isValidProxyAddress(opts.ProxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, opts.ProxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		tr.Proxy = nil
		tr.DialContext = contextDialer(dialer)
		// Each connection holds a Tor circuit, so keep the idle pool small.
		tr.MaxIdleConns = 10
		tr.MaxIdleConnsPerHost = 2
		tr.IdleConnTimeout = 30 * time.Second
		tr.DisableCompression = true
	}
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // onion services authenticate by address
		}
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}

	return &http.Client{
		Transport: tr,
		Timeout:   opts.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// contextDialer adapts a proxy.Dialer to http.Transport.DialContext.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// ValidateUserAgent reports whether ua can be sent as a header value.
func ValidateUserAgent(ua string) error {
	if strings.TrimSpace(ua) == "" {
		return ErrEmptyUserAgent
	}
	if !httpguts.ValidHeaderFieldValue(ua) {
		return fmt.Errorf("%w: %q", ErrInvalidUserAgent, ua)
	}
	return nil
}

// CheckTarget rejects start addresses the options cannot reach safely.
// A .onion host must be a valid v3 address and requires a proxy.
func CheckTarget(target *url.URL, opts Options) error {
	host := strings.ToLower(target.Hostname())
	if !strings.HasSuffix(host, OnionSuffix) {
		return nil
	}
	if !IsOnionHost(host) {
		return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
	}
	if !opts.Proxied() {
		return fmt.Errorf("%w: %s", ErrOnionRequiresProxy, host)
	}
	return nil
}

// ProbeProxy checks that a TCP connection to the proxy can be opened.
// It does not speak SOCKS5; it only catches a proxy that is not running.
func ProbeProxy(ctx context.Context, address string) error {
	if !isValidProxyAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrProxyUnreachable, address, err)
	}
	return conn.Close()
}

// isValidProxyAddress reports whether address is host:port with a port in
// 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
