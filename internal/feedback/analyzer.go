package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	apperrors "github.com/driftwatch/driftwatch/internal/apperrors"
)

// HTTPAnalyzer implements Analyzer against a remote feedback service.
// The diff image is posted as the request body; the service responds
// with an Analysis document.
type HTTPAnalyzer struct {
	endpoint   string
	httpClient *http.Client
	tokenFunc  func() string // Function to get current token
}

// NewHTTPAnalyzer creates an analyzer for the given endpoint. tokenFunc
// may be nil when the service requires no authentication.
func NewHTTPAnalyzer(endpoint string, tokenFunc func() string) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokenFunc:  tokenFunc,
	}
}

func (a *HTTPAnalyzer) addAuthHeaders(req *http.Request) {
	if a.tokenFunc != nil {
		if token := a.tokenFunc(); token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		}
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, diffImagePath string) (*Analysis, error) {
	data, err := os.ReadFile(diffImagePath)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeFeedback, "failed to read diff image", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeFeedback, "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "image/png")
	a.addAuthHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeFeedback, "failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.New(apperrors.ErrCodeFeedback,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var analysis Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeFeedback, "failed to decode response", err)
	}

	return &analysis, nil
}
