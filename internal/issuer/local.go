package issuer

import (
	"context"
	"fmt"
	"sync"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/google/uuid"
)

// Local issues badge and artifact references in-process, for single-node
// deployments that have no external credential service configured.
// References are UUIDs; minted badges are tracked so a repeat mint for the
// same (user, level) pair fails the same way the remote service would.
type Local struct {
	minted map[string]struct{}
	mu     sync.Mutex
}

// NewLocal creates an in-process issuer.
func NewLocal() *Local {
	return &Local{minted: make(map[string]struct{})}
}

// MintBadge returns a fresh badge reference, or common.ErrDuplicateMint if
// this issuer already minted for the (user, level) pair.
func (l *Local) MintBadge(_ context.Context, userID string, rankLevel int) (string, error) {
	key := fmt.Sprintf("%s:%d", userID, rankLevel)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.minted[key]; exists {
		return "", fmt.Errorf("%w: user %s level %d", common.ErrDuplicateMint, userID, rankLevel)
	}
	l.minted[key] = struct{}{}

	return "badge-" + uuid.New().String(), nil
}

// DistributeArtifact returns a fresh delivery reference.
func (l *Local) DistributeArtifact(_ context.Context, _, artifactID string) (string, error) {
	if artifactID == "" {
		return "", fmt.Errorf("%w: empty artifact id", common.ErrArtifactDelivery)
	}
	return "artifact-" + uuid.New().String(), nil
}
