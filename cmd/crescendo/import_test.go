package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActivityCSV(t *testing.T) {
	input := `sender,recipient,amount,axis,annotation,created_at
alice,bob,150.00,economic,,2024-03-01T10:00:00Z
carol,alice,0,resonance,great work on the release,2024-03-01T11:30:00Z
dave,alice,not-a-number,economic,,2024-03-01T12:00:00Z
,alice,5.00,economic,,2024-03-01T13:00:00Z
erin,alice,25.50,tip,,2024-03-02T09:15:00Z
`

	records, skipped, err := parseActivityCSV(strings.NewReader(input), "tenant-1")
	require.NoError(t, err)

	// Bad amount and missing sender are skipped, not fatal.
	assert.Equal(t, 2, skipped)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "tenant-1", first.TenantID)
	assert.Equal(t, "alice", first.SenderID)
	assert.Equal(t, "bob", first.ReceiverID)
	assert.InDelta(t, 150.0, first.Amount, 0.001)
	assert.Equal(t, "economic", first.AxisTag)
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.Hash)

	// Annotations survive untrimmed; unrecognized tags are kept as-is and
	// classified downstream.
	assert.Equal(t, "great work on the release", records[1].Annotation)
	assert.Equal(t, "tip", records[2].AxisTag)
}

func TestParseActivityCSVNoHeader(t *testing.T) {
	input := "alice,bob,10.00,economic,,2024-03-01T10:00:00Z\n"

	records, skipped, err := parseActivityCSV(strings.NewReader(input), "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 1)
}

func TestParseActivityCSVEmpty(t *testing.T) {
	_, _, err := parseActivityCSV(strings.NewReader(""), "tenant-1")
	require.Error(t, err)
}

func TestParseActivityRowRejectsNegativeAmount(t *testing.T) {
	row := []string{"alice", "bob", "-5.00", "economic", "", "2024-03-01T10:00:00Z"}
	_, err := parseActivityRow(row, "tenant-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative amount")
}

func TestParseActivityRowRejectsBadTimestamp(t *testing.T) {
	row := []string{"alice", "bob", "5.00", "economic", "", "March 1st"}
	_, err := parseActivityRow(row, "tenant-1")
	require.Error(t, err)
}
