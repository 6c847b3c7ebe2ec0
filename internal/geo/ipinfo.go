// internal/geo/ipinfo.go
//
// ipinfo.io provider.  GET <base>/<ip>/json, or <base>/json when the
// payload carried no address (ipinfo then reports on the caller, which is the
// bot's own egress address; useful only for local testing).  Concurrent
// lookups of the same address share one request.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// IPInfo queries the ipinfo JSON API.
type IPInfo struct {
	BaseURL string // default https://ipinfo.io
	Token   string
	Client  *http.Client

	flight singleflight.Group
}

// NewIPInfo returns a provider with a bounded HTTP client.
func NewIPInfo(baseURL, token string, timeout time.Duration) *IPInfo {
	if baseURL == "" {
		baseURL = "https://ipinfo.io"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IPInfo{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

type ipinfoResponse struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
}

// Locate implements Locator.
func (p *IPInfo) Locate(ctx context.Context, loc Location) (string, error) {
	key := "self"
	endpoint := p.BaseURL + "/json"
	if loc.IP != nil {
		key = loc.IP.String()
		endpoint = p.BaseURL + "/" + url.PathEscape(key) + "/json"
	}
	if p.Token != "" {
		endpoint += "?token=" + url.QueryEscape(p.Token)
	}

	// The shared request must outlive any single caller; Client.Timeout
	// bounds it instead.
	ch := p.flight.DoChan(key, func() (any, error) {
		return p.fetch(context.WithoutCancel(ctx), endpoint)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("ipinfo: %w", ctx.Err())
	}
}

func (p *IPInfo) fetch(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("ipinfo: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ipinfo: status %d", resp.StatusCode)
	}

	var body ipinfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("ipinfo decode: %w", err)
	}
	if body.Country == "" {
		return "", fmt.Errorf("ipinfo: %w: empty country", ErrUnresolved)
	}
	return normalizeCode(body.Country)
}
