package transport

import "errors"

var (
	// ErrEmptyUserAgent is returned when the user agent is empty.
	ErrEmptyUserAgent = errors.New("user agent is empty")

	// ErrInvalidUserAgent is returned when the user agent contains bytes that
	// are not allowed in an HTTP header value.
	ErrInvalidUserAgent = errors.New("user agent is not a valid header value")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyUnreachable is returned when no TCP connection to the proxy can
	// be opened.
	ErrProxyUnreachable = errors.New("cannot connect to proxy")

	// ErrOnionRequiresProxy is returned when a .onion address would be fetched
	// without a proxy.
	ErrOnionRequiresProxy = errors.New("onion address requires a SOCKS5 proxy")

	// ErrInvalidOnionAddress is returned when a .onion host fails v3 validation.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrTorNotRunning is returned when the embedded Tor daemon was not started.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)
