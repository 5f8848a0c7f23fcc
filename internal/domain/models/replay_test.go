package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDecodeCanonicalTimestamp(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"capturedAt":"2026-03-20T14:35:00Z","note":"open drive"}`), &s))

	assert.Equal(t, time.Date(2026, 3, 20, 14, 35, 0, 0, time.UTC), s.CapturedAt)
	assert.Equal(t, "open drive", s.Note)
}

func TestSnapshotDecodeLegacyAlias(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"captured_at":"2026-03-20T14:35:00Z","regime":"trending"}`), &s))

	assert.Equal(t, time.Date(2026, 3, 20, 14, 35, 0, 0, time.UTC), s.CapturedAt)
	assert.Equal(t, RegimeTrending, s.Regime)
}

func TestSnapshotDecodeBadTimestampIsNotFatal(t *testing.T) {
	var batch []Snapshot
	payload := `[{"capturedAt":"not-a-time","note":"bad"},{"capturedAt":"2026-03-20T15:00:00Z","note":"good"}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &batch))

	require.Len(t, batch, 2)
	assert.True(t, batch[0].CapturedAt.IsZero())
	assert.Equal(t, "good", batch[1].Note)
	assert.False(t, batch[1].CapturedAt.IsZero())
}
