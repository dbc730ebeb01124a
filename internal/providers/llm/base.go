package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandevgo/cnapse/internal/core"
)

const maxErrorBody = 512

type baseProvider struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func newBaseProvider(name, baseURL, apiKey, model string) baseProvider {
	return baseProvider{
		name: name,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

func (b *baseProvider) modelFor(req core.InferenceRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return b.model
}

func (b *baseProvider) doRequest(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	return resp, nil
}

// readOK reads the response body and turns a non-200 status into an error
// carrying a bounded excerpt of the body.
func readOK(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		excerpt := string(data)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody] + "..."
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, excerpt)
	}
	return data, nil
}

// failure classifies err as an inference failure unless the context ended.
func (b *baseProvider) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return core.E(core.InferenceFailure, b.name, err)
}
