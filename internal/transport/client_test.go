package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ua      string
		wantErr error
	}{
		{name: "plain agent", ua: "harvester/0.1", wantErr: nil},
		{name: "agent with comment", ua: "Mozilla/5.0 (X11; Linux x86_64)", wantErr: nil},
		{name: "empty", ua: "", wantErr: ErrEmptyUserAgent},
		{name: "whitespace only", ua: "   ", wantErr: ErrEmptyUserAgent},
		{name: "newline injection", ua: "bot\r\nX-Evil: 1", wantErr: ErrInvalidUserAgent},
		{name: "nul byte", ua: "bot\x00", wantErr: ErrInvalidUserAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateUserAgent(tt.ua)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateUserAgent(%q) unexpected error: %v", tt.ua, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUserAgent(%q) = %v, want %v", tt.ua, err, tt.wantErr)
			}
		})
	}
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9050", true},
		{"[::1]:9050", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()

			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("direct client has no proxy dialer override", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(DefaultOptions())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Timeout != DefaultOptions().Timeout {
			t.Errorf("Timeout = %v, want %v", client.Timeout, DefaultOptions().Timeout)
		}
		tr, ok := client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
		}
		if tr.DisableCompression {
			t.Error("direct transport should keep compression enabled")
		}
	})

	t.Run("proxied client disables compression", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.ProxyAddress = "127.0.0.1:9050"
		client, err := NewHTTPClient(opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr, ok := client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
		}
		if !tr.DisableCompression {
			t.Error("proxied transport should disable compression")
		}
		if tr.Proxy != nil {
			t.Error("proxied transport should not also use an HTTP proxy")
		}
	})

	t.Run("invalid proxy address", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.ProxyAddress = "not-an-address"
		if _, err := NewHTTPClient(opts); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("redirect chain is capped", func(t *testing.T) {
		t.Parallel()

		var hops atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hops.Add(1)
			http.Redirect(w, r, "/loop", http.StatusFound)
		}))
		defer srv.Close()

		opts := DefaultOptions()
		opts.MaxRedirects = 3
		client, err := NewHTTPClient(opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
		}
		if got := hops.Load(); got != 3 {
			t.Errorf("server saw %d requests, want 3", got)
		}
	})
}

func TestCheckTarget(t *testing.T) {
	t.Parallel()

	proxied := DefaultOptions()
	proxied.ProxyAddress = "127.0.0.1:9050"

	tests := []struct {
		name    string
		target  string
		opts    Options
		wantErr error
	}{
		{name: "clearnet direct", target: "https://example.com/", opts: DefaultOptions()},
		{name: "onion through proxy", target: "http://" + testOnionHost + "/", opts: proxied},
		{name: "onion direct", target: "http://" + testOnionHost + "/", opts: DefaultOptions(), wantErr: ErrOnionRequiresProxy},
		{name: "malformed onion", target: "http://abc.onion/", opts: proxied, wantErr: ErrInvalidOnionAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tt.target)
			if err != nil {
				t.Fatalf("url.Parse: %v", err)
			}
			err = CheckTarget(u, tt.opts)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckTarget() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProbeProxy(t *testing.T) {
	t.Parallel()

	t.Run("listening address", func(t *testing.T) {
		t.Parallel()

		ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				conn.Close()
			}
		}()

		if err := ProbeProxy(context.Background(), ln.Addr().String()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("closed port", func(t *testing.T) {
		t.Parallel()

		ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ProbeProxy(ctx, addr); !errors.Is(err, ErrProxyUnreachable) {
			t.Errorf("expected ErrProxyUnreachable, got %v", err)
		}
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		if err := ProbeProxy(context.Background(), "nope"); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}
