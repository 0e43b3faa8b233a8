package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/lattice/pkg/model"
)

// httpMaxBody caps how much of a response we are willing to decode.
const httpMaxBody = 16 << 20

// HTTP fetches snapshots from a JSON endpoint.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates a provider for the given endpoint. A zero timeout
// means 10 seconds; per-fetch deadlines still come from the caller's
// context on top of this.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (h *HTTP) Name() string { return "http:" + h.url }

// Fetch implements Provider. A non-empty category is passed along as a
// query parameter so the endpoint can pre-filter, and enforced locally
// in case it doesn't.
func (h *HTTP) Fetch(ctx context.Context, category string) (model.Snapshot, error) {
	u := h.url
	if category != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "category=" + url.QueryEscape(category)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return model.Snapshot{}, fmt.Errorf("snapshot endpoint returned %s", resp.Status)
	}

	var snap model.Snapshot
	dec := json.NewDecoder(io.LimitReader(resp.Body, httpMaxBody))
	if err := dec.Decode(&snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot from %s: %w", h.url, err)
	}
	return FilterCategory(snap, category), nil
}
