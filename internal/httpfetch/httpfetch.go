// Package httpfetch downloads update payloads over HTTP(S) for the fwstage
// CLI. The engine itself never talks to the network; it only consumes the
// resulting stream.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

var client = &http.Client{
	// No overall timeout: payload transfers are long-running and cancelled
	// via context. Bound connection setup instead.
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	},
}

// Fetch GETs url and returns the body stream plus the content length (-1
// when unknown). The caller must close the stream.
func Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("httpfetch: GET %s: unexpected status %v", url, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}
