package probe

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPProber issues one HEAD request to the endpoint. The connection is
// pinned to the resolved address while the URL keeps the host name, so TLS
// verification and virtual hosting see the original target. Any HTTP
// response counts as reachable; the status is recorded in the detail.
type HTTPProber struct {
	Scheme string
}

func NewHTTPProber() *HTTPProber {
	return &HTTPProber{Scheme: "https"}
}

func (p *HTTPProber) Check(ctx context.Context, ep Endpoint, timeout time.Duration) Outcome {
	if timeout <= 0 {
		return invalidTimeout(ep, KindHTTP, timeout)
	}

	scheme := p.Scheme
	if scheme == "" {
		scheme = "https"
	}
	if ep.Port == 0 {
		ep = ep.WithPort(defaultPort(scheme))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host := ep.Host
	if host == "" {
		host = ep.Addr.String()
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, strconv.Itoa(ep.Port)), Path: "/"}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return failure(ep, KindHTTP, ReasonUnknown, err.Error())
	}

	dialer := &net.Dialer{}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, ep.String())
		},
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return failure(ep, KindHTTP, Classify(err), err.Error())
	}
	defer resp.Body.Close()

	return success(ep, KindHTTP, elapsed, "http "+resp.Status)
}

func defaultPort(scheme string) int {
	if scheme == "http" {
		return 80
	}
	return 443
}
