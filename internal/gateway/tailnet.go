// ABOUTME: Serves the gateway on a tailnet through an embedded tsnet node
// ABOUTME: One mode (plain HTTP, tailnet HTTPS or public Funnel) is picked from config and opened once

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/tsnet"

	"github.com/2389/lostify-gateway/internal/config"
)

// tailnetMode is how the gateway is exposed on the tailnet.
type tailnetMode int

const (
	tailnetHTTP   tailnetMode = iota // plain HTTP on :80, tailnet only
	tailnetHTTPS                     // tailnet certificates on :443
	tailnetFunnel                    // public HTTPS via Funnel; tsnet terminates TLS
)

func (m tailnetMode) String() string {
	switch m {
	case tailnetHTTPS:
		return "https"
	case tailnetFunnel:
		return "funnel"
	default:
		return "http"
	}
}

func (m tailnetMode) addr() string {
	if m == tailnetHTTP {
		return ":80"
	}
	return ":443"
}

// tailnetModeFor picks the mode from config. Funnel wins over HTTPS.
func tailnetModeFor(cfg config.TailscaleConfig) tailnetMode {
	switch {
	case cfg.Funnel:
		return tailnetFunnel
	case cfg.HTTPS:
		return tailnetHTTPS
	default:
		return tailnetHTTP
	}
}

// tailnetNode is the part of *tsnet.Server the listener needs.
type tailnetNode interface {
	Listen(network, addr string) (net.Listener, error)
	ListenFunnel(network, addr string, opts ...tsnet.FunnelOption) (net.Listener, error)
}

type certFunc func(*tls.ClientHelloInfo) (*tls.Certificate, error)

// tailnetListener opens the listener for mode on node. getCert is only used
// in HTTPS mode.
func tailnetListener(node tailnetNode, mode tailnetMode, getCert certFunc) (net.Listener, error) {
	var ln net.Listener
	var err error
	if mode == tailnetFunnel {
		ln, err = node.ListenFunnel("tcp", mode.addr())
	} else {
		ln, err = node.Listen("tcp", mode.addr())
	}
	if err != nil {
		return nil, fmt.Errorf("listening on tailnet %s %s: %w", mode, mode.addr(), err)
	}

	if mode != tailnetHTTPS {
		return ln, nil
	}
	if getCert == nil {
		_ = ln.Close()
		return nil, errors.New("tailnet https requires a certificate source")
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: getCert,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// newTailnetNode builds an unstarted tsnet node for cfg. The state dir
// defaults to ~/.local/share/lostify/tailscale and the auth key falls back
// to TS_AUTHKEY.
func newTailnetNode(cfg config.TailscaleConfig) (*tsnet.Server, error) {
	stateDir := cfg.StateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving tailscale state dir (set tailscale.state_dir): %w", err)
		}
		stateDir = filepath.Join(home, ".local", "share", "lostify", "tailscale")
	}

	authKey := cfg.AuthKey
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return nil, errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
	}

	return &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       stateDir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   authKey,
	}, nil
}

// setupTailscaleListener starts the tsnet node and opens the configured
// listener on it. The node is kept for Shutdown only once listening works.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale
	mode := tailnetModeFor(tsCfg)

	node, err := newTailnetNode(tsCfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(node.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	g.logger.Info("starting tailscale node",
		"hostname", node.Hostname, "state_dir", node.Dir, "ephemeral", node.Ephemeral, "mode", mode)
	status, err := node.Up(ctx)
	if err != nil {
		_ = node.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	var tsIP, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsIP = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "tailscale_ip", tsIP, "dns_name", dnsName)

	var getCert certFunc
	if mode == tailnetHTTPS {
		lc, err := node.LocalClient()
		if err != nil {
			_ = node.Close()
			return nil, fmt.Errorf("getting tailscale local client: %w", err)
		}
		getCert = lc.GetCertificate
	}

	ln, err := tailnetListener(node, mode, getCert)
	if err != nil {
		_ = node.Close()
		return nil, err
	}
	g.tsnetServer = node
	return ln, nil
}
