package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientMintBadge(t *testing.T) {
	tests := []struct {
		wantErr  error
		name     string
		response string
		wantRef  string
		status   int
	}{
		{
			name:     "successful mint",
			status:   http.StatusCreated,
			response: `{"badge_ref":"badge-abc123"}`,
			wantRef:  "badge-abc123",
		},
		{
			name:     "conflict maps to duplicate mint",
			status:   http.StatusConflict,
			response: `{"error":"already minted"}`,
			wantErr:  common.ErrDuplicateMint,
		},
		{
			name:     "server error maps to badge mint failure",
			status:   http.StatusInternalServerError,
			response: `{"error":"boom"}`,
			wantErr:  common.ErrBadgeMint,
		},
		{
			name:     "empty reference rejected",
			status:   http.StatusOK,
			response: `{}`,
			wantErr:  common.ErrBadgeMint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/badges", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req mintRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "user-1", req.UserID)
				assert.Equal(t, 3, req.RankLevel)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewHTTPClient(server.URL, "test-key")
			ref, err := client.MintBadge(context.Background(), "user-1", 3)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v in chain, got %v", tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, ref)
		})
	}
}

func TestHTTPClientDistributeArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/artifacts", r.URL.Path)

		var req artifactRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "artifact-gold", req.ArtifactID)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"artifact_ref":"delivery-999"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	ref, err := client.DistributeArtifact(context.Background(), "user-1", "artifact-gold")
	require.NoError(t, err)
	assert.Equal(t, "delivery-999", ref)
}

func TestHTTPClientDistributeArtifactFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	_, err := client.DistributeArtifact(context.Background(), "user-1", "artifact-gold")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrArtifactDelivery))
}

func TestLocalIssuer(t *testing.T) {
	local := NewLocal()
	ctx := context.Background()

	ref1, err := local.MintBadge(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, ref1)

	// Second mint for the same pair fails like the remote service would.
	_, err = local.MintBadge(ctx, "user-1", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateMint))

	// A different level is a fresh mint.
	ref3, err := local.MintBadge(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref3)

	artRef, err := local.DistributeArtifact(ctx, "user-1", "artifact-silver")
	require.NoError(t, err)
	assert.NotEmpty(t, artRef)

	_, err = local.DistributeArtifact(ctx, "user-1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrArtifactDelivery))
}
