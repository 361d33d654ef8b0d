// Package model defines the core domain types for the contribution engine.
package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AxisTag classifies which scoring axis a transfer feeds.
type AxisTag string

const (
	// AxisTagEconomic marks a transfer that carries monetary weight.
	AxisTagEconomic AxisTag = "economic"
	// AxisTagResonance marks a transfer that carries engagement weight only.
	AxisTagResonance AxisTag = "resonance"
)

// ParseAxisTag resolves a raw tag string to a known axis tag.
// The lookup is case-insensitive; unknown tags return ok=false.
func ParseAxisTag(raw string) (AxisTag, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(AxisTagEconomic):
		return AxisTagEconomic, true
	case string(AxisTagResonance):
		return AxisTagResonance, true
	default:
		return "", false
	}
}

// ActivityRecord is one settled transfer between two identities, scoped to a
// tenant. Records are owned by the ledger and read-only to this engine.
type ActivityRecord struct {
	CreatedAt  time.Time
	ID         string
	TenantID   string
	SenderID   string
	ReceiverID string
	AxisTag    string // raw tag as recorded by the ledger
	Annotation string
	Hash       string
	Amount     float64
}

// GenerateHash creates a unique hash for duplicate detection on import.
func (r *ActivityRecord) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%.2f:%s:%s",
		r.TenantID,
		r.SenderID,
		r.ReceiverID,
		r.Amount,
		r.AxisTag,
		r.CreatedAt.Format(time.RFC3339))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ActivityDate returns the calendar date of the record in UTC, the unit used
// for distinct-day and streak accounting.
func (r *ActivityRecord) ActivityDate() string {
	return r.CreatedAt.UTC().Format("2006-01-02")
}

// AggregatedCounters is the per (user, tenant) reduction of activity records.
// It is a transient projection, recomputed on every evaluation and never
// persisted as a source of truth.
type AggregatedCounters struct {
	ActiveDates    map[string]struct{}
	EconomicTotal  float64
	EconomicCount  int
	ResonanceCount int
	MessageQuality int // 0-100 signal derived from annotations
}

// SortedDates returns the distinct activity dates in ascending order.
func (c *AggregatedCounters) SortedDates() []string {
	dates := make([]string, 0, len(c.ActiveDates))
	for d := range c.ActiveDates {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
