package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/models"
)

const maxErrorBody = 512

// AnswerClient calls the remote answer service over HTTP. It makes exactly
// one attempt per question; retries would change what the user sees.
type AnswerClient struct {
	endpoint string
	http     *http.Client
}

var _ chat.Answerer = &AnswerClient{}

func NewAnswerClient(endpoint string, timeout time.Duration) *AnswerClient {
	return &AnswerClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *AnswerClient) Ask(ctx context.Context, req models.AnswerRequest) (*models.AnswerResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode answer request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build answer request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call answer service")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out models.AnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode answer response")
	}
	return &out, nil
}
