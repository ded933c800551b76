// Package door triggers the showroom turnstile through its HTTP controller,
// which is protected by digest authentication.
package door

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/icholy/digest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrNotConfigured = errors.New("door url not configured")

var doorOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "door_open_total",
	Help: "Door open requests by status",
}, []string{"status"})

type Opener struct {
	url   string
	httpc *http.Client
}

// New returns an Opener for url. base supplies the underlying transport and
// timeout and may be nil.
func New(url, username, password string, base *http.Client) *Opener {
	var rt http.RoundTripper = http.DefaultTransport
	timeout := 10 * time.Second
	if base != nil {
		if base.Transport != nil {
			rt = base.Transport
		}
		if base.Timeout > 0 {
			timeout = base.Timeout
		}
	}
	return &Opener{
		url: url,
		httpc: &http.Client{
			Timeout: timeout,
			Transport: &digest.Transport{
				Username:  username,
				Password:  password,
				Transport: rt,
			},
		},
	}
}

func (o *Opener) Configured() bool { return o != nil && o.url != "" }

// Open sends the GET that releases the turnstile and returns the controller's
// raw response body.
func (o *Opener) Open(ctx context.Context) (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.httpc.Do(req)
	if err != nil {
		doorOpenTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("door request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		doorOpenTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("read door response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		doorOpenTotal.WithLabelValues("rejected").Inc()
		if len(body) > 256 {
			body = body[:256]
		}
		return "", fmt.Errorf("door status=%d body=%s", resp.StatusCode, string(body))
	}
	doorOpenTotal.WithLabelValues("ok").Inc()
	return string(body), nil
}
