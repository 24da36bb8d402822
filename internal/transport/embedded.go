package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"

	"github.com/nao1215/harvester/internal/config"
)

// EmbeddedTor runs a private Tor daemon for the lifetime of a crawl.
//
// Bootstrapping downloads directory data and builds circuits, which takes
// one to three minutes. Start blocks until the SOCKS port is ready.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// NewEmbeddedTor returns a stopped daemon manager.
// A non-positive startupTimeout means config.DefaultTorStartupTimeout.
func NewEmbeddedTor(startupTimeout time.Duration) *EmbeddedTor {
	if startupTimeout <= 0 {
		startupTimeout = config.DefaultTorStartupTimeout
	}
	return &EmbeddedTor{startupTimeout: startupTimeout}
}

// Start launches the daemon on OS-assigned ports and waits for bootstrap.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return err
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts the daemon down. It is safe on a stopped instance.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	return err
}

// IsRunning reports whether the daemon is up.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when stopped.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// Apply returns opts routed through the daemon.
func (e *EmbeddedTor) Apply(opts Options) (Options, error) {
	if !e.IsRunning() {
		return opts, ErrTorNotRunning
	}
	opts.ProxyAddress = e.socksAddr
	opts.InsecureSkipVerify = true
	return opts, nil
}
