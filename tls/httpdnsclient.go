package tls

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
)

// HTTPDNSClient implements DNSAPIClient against a generic REST DNS API
// reachable at endpoint (the spec's CERTIFICATE_DIRECTORY/DNS_API_ENDPOINT
// environment contract, spec.md §6), using fasthttp instead of net/http
// for the callout.
type HTTPDNSClient struct {
	endpoint string
	client   *fasthttp.Client
}

func NewHTTPDNSClient(endpoint string) *HTTPDNSClient {
	return &HTTPDNSClient{
		endpoint: endpoint,
		client:   &fasthttp.Client{Name: "vesper-hub-acme-hook"},
	}
}

func (c *HTTPDNSClient) PlaceTXT(ctx context.Context, name, value string) error {
	return c.call(ctx, "PUT", name, value)
}

func (c *HTTPDNSClient) RemoveTXT(ctx context.Context, name, value string) error {
	return c.call(ctx, "DELETE", name, value)
}

func (c *HTTPDNSClient) call(ctx context.Context, method, name, value string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	u := fmt.Sprintf("%s?name=%s&value=%s", c.endpoint, url.QueryEscape(name), url.QueryEscape(value))
	req.SetRequestURI(u)
	req.Header.SetMethod(method)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return err
	}
	if sc := resp.StatusCode(); sc < 200 || sc >= 300 {
		return fmt.Errorf("dns api hook: unexpected status %d", sc)
	}
	return nil
}
