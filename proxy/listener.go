package proxy

import (
	"context"
	"errors"
	"net"
	"time"
)

// acceptLoop hands every connection on ln to a client session until ln is
// closed.
func (p *Proxy) acceptLoop(ctx context.Context, ln net.Listener) {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}

			// Back off on errors like running out of file descriptors.
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			p.log.Warn("Accept failed", "err", err, "retry", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		p.clientWG.Add(1)
		go func() {
			defer p.clientWG.Done()
			p.ServeConn(ctx, conn)
		}()
	}
}
