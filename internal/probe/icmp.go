package probe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

// ListenFunc opens the packet socket for an ICMP network such as
// "ip4:icmp" or "ip6:ipv6-icmp".
type ListenFunc func(network, address string) (net.PacketConn, error)

// ICMPProber sends one echo request and waits for the matching reply.
// Raw ICMP sockets need root or CAP_NET_RAW; without them the outcome
// fails with PERMISSION_DENIED.
type ICMPProber struct {
	Payload []byte
	Listen  ListenFunc
	seq     atomic.Uint32
}

func NewICMPProber() *ICMPProber {
	return &ICMPProber{Payload: []byte("netdiag"), Listen: listenICMP}
}

func listenICMP(network, address string) (net.PacketConn, error) {
	c, err := icmp.ListenPacket(network, address)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *ICMPProber) Check(ctx context.Context, ep Endpoint, timeout time.Duration) Outcome {
	if timeout <= 0 {
		return invalidTimeout(ep, KindICMP, timeout)
	}

	network, listenAddr := "ip4:icmp", "0.0.0.0"
	var echoType icmp.Type = ipv4.ICMPTypeEcho
	proto := protocolICMP
	if ep.Addr.Is6() && !ep.Addr.Is4In6() {
		network, listenAddr = "ip6:ipv6-icmp", "::"
		echoType = ipv6.ICMPTypeEchoRequest
		proto = protocolIPv6ICMP
	}

	listen := p.Listen
	if listen == nil {
		listen = listenICMP
	}
	conn, err := listen(network, listenAddr)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return failure(ep, KindICMP, ReasonPermissionDenied, "icmp listen requires root or CAP_NET_RAW: "+err.Error())
		}
		return failure(ep, KindICMP, Classify(err), "icmp listen: "+err.Error())
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	id := os.Getpid() & 0xffff
	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: p.Payload,
		},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return failure(ep, KindICMP, ReasonUnknown, "icmp marshal: "+err.Error())
	}

	dst := &net.IPAddr{IP: net.IP(ep.Addr.Unmap().AsSlice())}
	start := time.Now()
	if _, err := conn.WriteTo(b, dst); err != nil {
		return failure(ep, KindICMP, Classify(err), "icmp write: "+err.Error())
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return failure(ep, KindICMP, Classify(err), "icmp read: "+err.Error())
		}
		elapsed := time.Since(start)

		recv, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}

		switch recv.Type {
		case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
			echo, ok := recv.Body.(*icmp.Echo)
			if !ok || echo.ID != id || echo.Seq != seq {
				continue
			}
			return success(ep, KindICMP, elapsed, fmt.Sprintf("icmp echo reply from %s", peer))
		case ipv4.ICMPTypeDestinationUnreachable, ipv6.ICMPTypeDestinationUnreachable:
			// Raw sockets see every ICMP error the host receives.
			body, ok := recv.Body.(*icmp.DstUnreach)
			if !ok || !quotesEcho(proto, body.Data, id, seq) {
				continue
			}
			return failure(ep, KindICMP, Classify(ErrDestinationUnreachable), fmt.Sprintf("%s reported by %s", ErrDestinationUnreachable, peer))
		}
	}
}

// quotesEcho reports whether data, the datagram quoted by an ICMP error,
// is our echo request with the given id and seq.
func quotesEcho(proto int, data []byte, id, seq int) bool {
	var inner []byte
	var request byte
	switch proto {
	case protocolICMP:
		h, err := ipv4.ParseHeader(data)
		if err != nil || h.Protocol != protocolICMP || h.Len > len(data) {
			return false
		}
		inner, request = data[h.Len:], byte(ipv4.ICMPTypeEcho)
	case protocolIPv6ICMP:
		h, err := ipv6.ParseHeader(data)
		if err != nil || h.NextHeader != protocolIPv6ICMP {
			return false
		}
		inner, request = data[ipv6.HeaderLen:], byte(ipv6.ICMPTypeEchoRequest)
	default:
		return false
	}
	if len(inner) < 8 || inner[0] != request {
		return false
	}
	return int(binary.BigEndian.Uint16(inner[4:6])) == id &&
		int(binary.BigEndian.Uint16(inner[6:8])) == seq
}
