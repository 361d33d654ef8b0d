package model

import "time"

// DistributionStatus is the lifecycle state of a reward issuance attempt.
type DistributionStatus string

const (
	// StatusPending marks a claimed but not yet finalized issuance slot.
	StatusPending DistributionStatus = "pending"
	// StatusCompleted marks an issuance where at least one side effect succeeded.
	StatusCompleted DistributionStatus = "completed"
	// StatusFailed marks an issuance where every side effect failed.
	StatusFailed DistributionStatus = "failed"
)

// RewardDistributionRecord is one durable row per (user, tenant, rank level)
// issuance attempt. The triple is the natural idempotency key; a record is
// never updated after reaching a terminal status except to add a failure
// reason.
type RewardDistributionRecord struct {
	CreatedAt     time.Time
	ID            string
	UserID        string
	TenantID      string
	Status        DistributionStatus
	BadgeRef      string
	ArtifactRef   string
	FailureReason string
	Score         float64
	Threshold     float64
	RankLevel     int
	BadgeMinted   bool
	ArtifactSent  bool
}

// Terminal reports whether the record has reached a final status.
func (r *RewardDistributionRecord) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// RankUpEvent signals that a subject's resolved rank increased since the
// last observation. Emitted exactly once per boundary crossing; when several
// tiers are crossed in one evaluation it carries the final level reached.
type RankUpEvent struct {
	UserID        string
	TenantID      string
	RankName      string
	ColorToken    string
	PreviousLevel int
	NewLevel      int
}

// RankUpNotification is the presentation-facing payload for a completed
// reward distribution.
type RankUpNotification struct {
	BadgeRef    string
	ArtifactRef string
	Level       int
}

// Snapshot is the read-only scoring state exposed to presentation layers.
type Snapshot struct {
	Economic  AxisScore
	Resonance AxisScore
	Composite CompositeScore
	Error     string
	RankUps   []RankUpNotification
	Loading   bool
}
