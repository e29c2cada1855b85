package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cheongchun/chatcore/internal/domain"
)

const summaryPath = "/conversation/summary"

// HTTPSummarizer calls the summarization backend over HTTP.
type HTTPSummarizer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSummarizer creates a summarizer posting to baseURL + /conversation/summary.
func NewHTTPSummarizer(baseURL string, timeout time.Duration) *HTTPSummarizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSummarizer{
		endpoint:   strings.TrimRight(baseURL, "/") + summaryPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Summarize sends req and decodes the structured result.
func (s *HTTPSummarizer) Summarize(ctx context.Context, req domain.SummaryRequest) (*domain.SummaryResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, string(data))
	}

	var result domain.SummaryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}
