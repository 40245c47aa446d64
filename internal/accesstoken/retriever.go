package accesstoken

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRetriever calls the authentication gateway's BSN endpoint. The gateway
// performs the actual decryption; we only forward the retrieval token.
type HTTPRetriever struct {
	url    string
	client *http.Client
}

func NewHTTPRetriever(url string, timeout time.Duration) *HTTPRetriever {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRetriever{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type bsnResponse struct {
	BSN string `json:"bsn"`
}

func (r *HTTPRetriever) Retrieve(ctx context.Context, tvsToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(""))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tvsToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bsn endpoint returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed bsnResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode bsn response: %w", err)
	}
	if parsed.BSN == "" {
		return "", fmt.Errorf("bsn endpoint returned empty result")
	}
	return parsed.BSN, nil
}
