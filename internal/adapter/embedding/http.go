package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tutorgrid/internal/domain"
)

const maxResponseBytes = 10 * 1024 * 1024

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// postJSON sends in as a JSON body and decodes the 200 response into out.
// Every failure is reported as domain.ErrEmbeddingUnavailable so callers can
// degrade to a cache miss.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", domain.ErrEmbeddingUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrEmbeddingUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http request: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API error %d: %s", domain.ErrEmbeddingUnavailable, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// checkBatch verifies the provider returned one vector of the expected
// dimension per input text.
func checkBatch(vecs [][]float32, texts []string, dims int) error {
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", domain.ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return nil
}
