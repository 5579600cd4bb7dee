package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DialFunc matches (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPProber measures the time to complete a TCP handshake.
type TCPProber struct {
	Dial DialFunc
}

func NewTCPProber() *TCPProber {
	return &TCPProber{Dial: (&net.Dialer{}).DialContext}
}

func (p *TCPProber) Check(ctx context.Context, ep Endpoint, timeout time.Duration) Outcome {
	if timeout <= 0 {
		return invalidTimeout(ep, KindTCP, timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	start := time.Now()
	conn, err := dial(ctx, "tcp", ep.String())
	elapsed := time.Since(start)
	if err != nil {
		return failure(ep, KindTCP, Classify(err), err.Error())
	}
	_ = conn.Close()

	return success(ep, KindTCP, elapsed, fmt.Sprintf("tcp connect %s", ep.String()))
}
