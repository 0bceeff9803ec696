package compute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"stakedeck/internal/types"
)

const gatewayBodyLimit = 4 << 20

// HTTPGateway implements ports.ComputeGateway against the node's JSON API.
// It adds no retry and no timeout of its own; cancellation comes from the
// caller's context and pacing from the coordinator's limiter.
type HTTPGateway struct {
	base   string
	apiKey string
	cli    *http.Client
}

func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		base:   baseURL,
		apiKey: apiKey,
		// no Timeout: AwaitResult long-polls, ctx bounds each call
		cli: &http.Client{Transport: &http.Transport{IdleConnTimeout: 90 * time.Second}},
	}
}

type callBody struct {
	Target string      `json:"target"`
	Tags   []types.Tag `json:"tags"`
}

// Query issues a read-only dry-run call against target.
func (g *HTTPGateway) Query(ctx context.Context, target string, tags []types.Tag) (types.CallResult, error) {
	var result types.CallResult
	err := g.post(ctx, g.endpoint("dry-run", target), callBody{Target: target, Tags: tags}, &result)
	return result, err
}

// Submit sends a signed message and returns the node-assigned submission id.
func (g *HTTPGateway) Submit(ctx context.Context, target string, tags []types.Tag) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, g.endpoint("message", target), callBody{Target: target, Tags: tags}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AwaitResult long-polls the node until the submission settles.
func (g *HTTPGateway) AwaitResult(ctx context.Context, target string, id string) (types.CallResult, error) {
	u := fmt.Sprintf("%s/result/%s?process-id=%s", g.base, url.PathEscape(id), url.QueryEscape(target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.CallResult{}, err
	}
	var result types.CallResult
	err = g.do(req, &result)
	return result, err
}

func (g *HTTPGateway) endpoint(path, target string) string {
	return fmt.Sprintf("%s/%s?process-id=%s", g.base, path, url.QueryEscape(target))
}

func (g *HTTPGateway) post(ctx context.Context, u string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *HTTPGateway) do(req *http.Request, out any) error {
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.cli.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, gatewayBodyLimit))
	if err != nil {
		return fmt.Errorf("read node response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode node response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
