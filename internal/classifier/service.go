// HTTP client for the external ML classification service.

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ServiceClient calls a remote analysis endpoint. One request per row; the
// per-call timeout bounds how long a slow model can stall a batch.
type ServiceClient struct {
	endpoint string
	client   *http.Client
}

// NewServiceClient creates a client for the configured endpoint.
func NewServiceClient(endpoint string, timeout time.Duration) *ServiceClient {
	return &ServiceClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// Classify sends the text to the analysis service and decodes its result.
func (c *ServiceClient) Classify(ctx context.Context, text string) (*Result, error) {
	payload, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if result.Sentiment == "" {
		return nil, fmt.Errorf("classifier response missing sentiment")
	}
	return &result, nil
}
