package inet

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

// DialOptions describe how to reach a server.
type DialOptions struct {
	TLS bool
	// TLSConfig is cloned, ServerName defaults to the host dialed.
	TLSConfig *tls.Config
	// SOCKS5 is the address of a socks5 proxy to go through, empty for a
	// direct connection.
	SOCKS5     string
	SOCKS5Auth *proxy.Auth
	Timeout    time.Duration
}

// Dial connects to addr, a host:port, through the proxy and TLS given.
func Dial(ctx context.Context, addr string, opts DialOptions) (net.Conn, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	direct := &net.Dialer{}
	var dialer proxy.ContextDialer = direct
	if len(opts.SOCKS5) > 0 {
		d, err := proxy.SOCKS5("tcp", opts.SOCKS5, opts.SOCKS5Auth, direct)
		if err != nil {
			return nil, errors.Wrap(err, "inet: socks5")
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("inet: socks5 dialer does not take a context")
		}
		dialer = cd
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "inet: dial %s", addr)
	}
	if !opts.TLS {
		return conn, nil
	}

	var conf *tls.Config
	if opts.TLSConfig != nil {
		conf = opts.TLSConfig.Clone()
	} else {
		conf = &tls.Config{}
	}
	if len(conf.ServerName) == 0 {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			conf.ServerName = host
		}
	}

	tlsConn := tls.Client(conn, conf)
	if err = tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "inet: tls handshake with %s", addr)
	}
	return tlsConn, nil
}
