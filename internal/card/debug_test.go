package card

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebugRingEvictsOldest(t *testing.T) {
	ring := NewDebugRing(DebugCapacity)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		call := newCall(entity, fmt.Sprintf("Method.%d", i))
		ring.Push(newDebugRecord(base.Add(time.Duration(i)*time.Second), call, nil, nil))
	}

	all := ring.All()
	require.Len(t, all, DebugCapacity)
	require.Equal(t, 5, ring.Len())
	for i, rec := range all {
		require.Equal(t, fmt.Sprintf("Method.%d", 5-i), rec.Request.Method())
	}
}

func TestDebugRecordStatus(t *testing.T) {
	at := time.Date(2024, 3, 9, 8, 7, 6, 5000000, time.FixedZone("CET", 3600))
	rec := newDebugRecord(at, newCall(entity, MethodPlayerOpen), nil, errors.New("timeout"))
	require.Equal(t, DebugError, rec.Status)
	require.Equal(t, "timeout", rec.Error)
	require.Equal(t, "2024-03-09T07:07:06.005Z", rec.Timestamp)

	rec = newDebugRecord(at, newCall(entity, MethodPlayerOpen), []byte(`"OK"`), nil)
	require.Equal(t, DebugSuccess, rec.Status)
	require.Empty(t, rec.Error)
}

func TestDebugRingNilAndClear(t *testing.T) {
	var ring *DebugRing
	ring.Push(DebugRecord{})
	require.Empty(t, ring.All())
	require.Zero(t, ring.Len())
	ring.Clear()

	ring = NewDebugRing(0)
	ring.Push(DebugRecord{Status: DebugSuccess})
	ring.Clear()
	require.Empty(t, ring.All())
	ring.Push(DebugRecord{Status: DebugError})
	require.Equal(t, DebugError, ring.All()[0].Status)
}
