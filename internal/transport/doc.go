// Package transport builds the HTTP clients used by crawl units.
//
// A client goes direct by default. When a SOCKS5 proxy address is set, every
// connection is dialed through it with golang.org/x/net/proxy; EmbeddedTor
// starts a private Tor daemon with tornago and supplies such an address.
//
// The package also validates what is sent on the wire before any request
// leaves: user-agent strings must be legal header values, and .onion start
// addresses are refused unless a proxy is configured, since resolving them
// directly would leak the lookup to the local resolver.
package transport
