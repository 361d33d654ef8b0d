// Package issuer provides badge minting and artifact delivery clients for
// the reward distributor.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crescendoapp/crescendo/internal/common"
)

// HTTPClient talks to an external credential service over its JSON API. It
// implements both service.BadgeMinter and service.ArtifactDistributor.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type mintRequest struct {
	UserID    string `json:"user_id"`
	RankLevel int    `json:"rank_level"`
}

type mintResponse struct {
	BadgeRef string `json:"badge_ref"`
}

type artifactRequest struct {
	UserID     string `json:"user_id"`
	ArtifactID string `json:"artifact_id"`
}

type artifactResponse struct {
	ArtifactRef string `json:"artifact_ref"`
}

// NewHTTPClient creates a client for the given credential service base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MintBadge requests a rank badge credential and returns its reference id.
// A conflict response means the service already holds a badge for this
// (user, level) pair and maps to common.ErrDuplicateMint.
func (c *HTTPClient) MintBadge(ctx context.Context, userID string, rankLevel int) (string, error) {
	var resp mintResponse
	err := c.post(ctx, "/v1/badges", mintRequest{UserID: userID, RankLevel: rankLevel}, &resp)
	if err != nil {
		var httpErr *statusError
		if errors.As(err, &httpErr) && httpErr.code == http.StatusConflict {
			return "", fmt.Errorf("%w: user %s level %d", common.ErrDuplicateMint, userID, rankLevel)
		}
		return "", fmt.Errorf("%w: %v", common.ErrBadgeMint, err)
	}
	if resp.BadgeRef == "" {
		return "", fmt.Errorf("%w: service returned empty badge reference", common.ErrBadgeMint)
	}
	return resp.BadgeRef, nil
}

// DistributeArtifact requests delivery of a bonus artifact and returns the
// delivery reference id.
func (c *HTTPClient) DistributeArtifact(ctx context.Context, userID, artifactID string) (string, error) {
	var resp artifactResponse
	err := c.post(ctx, "/v1/artifacts", artifactRequest{UserID: userID, ArtifactID: artifactID}, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrArtifactDelivery, err)
	}
	if resp.ArtifactRef == "" {
		return "", fmt.Errorf("%w: service returned empty artifact reference", common.ErrArtifactDelivery)
	}
	return resp.ArtifactRef, nil
}

type statusError struct {
	body string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
