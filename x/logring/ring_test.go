package logring

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensornode-go/types"
)

func fixedClock() time.Time { return time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC) }

func TestSinceZeroAfterFullRing(t *testing.T) {
	r := New(8, 64, fixedClock)
	for i := 0; i < 8; i++ {
		r.Append(types.LevelInfo, "m"+strconv.Itoa(i))
	}
	got := r.Since(0)
	require.Len(t, got, 8)
	for i, rec := range got {
		assert.Equal(t, uint32(i+1), rec.Seq)
		assert.Equal(t, "m"+strconv.Itoa(i), rec.Message)
	}
	assert.Equal(t, uint8(13), got[0].Hour)
	assert.Equal(t, uint8(4), got[0].Minute)
	assert.Equal(t, uint8(5), got[0].Second)
}

func TestOverwriteOldest(t *testing.T) {
	const capacity, k = 8, 5
	r := New(capacity, 64, fixedClock)
	for i := 0; i < capacity+k; i++ {
		r.Append(types.LevelWarn, "x")
	}
	got := r.Since(0)
	require.Len(t, got, capacity)
	assert.Equal(t, uint32(k+1), got[0].Seq)
	assert.Equal(t, uint32(capacity+k), got[len(got)-1].Seq)

	// The oldest k are gone, not an error.
	assert.Len(t, r.Since(3), capacity)
	assert.Equal(t, uint32(capacity+k+1), r.Next())
}

func TestSinceMiddleAndAhead(t *testing.T) {
	r := New(4, 64, fixedClock)
	assert.Empty(t, r.Since(0))
	for i := 0; i < 3; i++ {
		r.Append(types.LevelDebug, "d")
	}
	got := r.Since(2)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(2), got[0].Seq)
	assert.Empty(t, r.Since(4))
	assert.Empty(t, r.Since(100))
}

func TestMessageTruncated(t *testing.T) {
	r := New(2, 10, fixedClock)
	r.Append(types.LevelError, strings.Repeat("a", 50))
	got := r.Since(1)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Message, 10)
	assert.Equal(t, types.LevelError, got[0].Level)
}

func TestNewRejectsOddSize(t *testing.T) {
	assert.Panics(t, func() { New(6, 10, nil) })
}
