// Package logring holds the most recent diagnostic records in a fixed ring.
//
// Sequence numbers are monotonic and dense; the physical slot of sequence s is
// s & mask, so "everything from sequence S" stays well defined however often the
// slot index has wrapped.
package logring

import (
	"sync"

	"sensornode-go/types"
	"sensornode-go/x/strx"
	"sensornode-go/x/timex"
)

// Ring is a fixed-capacity record ring. Safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	recs  []types.LogRecord
	mask  uint32
	seq   uint32 // last assigned sequence; 0 = empty
	clock timex.Clock
	limit int
}

// New creates a ring of size records (power of two >= 2).
// Messages longer than msgLimit bytes are cut.
func New(size, msgLimit int, clock timex.Clock) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("logring: size must be power of two >= 2")
	}
	return &Ring{
		recs:  make([]types.LogRecord, size),
		mask:  uint32(size - 1),
		clock: clock.Or(),
		limit: msgLimit,
	}
}

// Cap returns the number of slots.
func (r *Ring) Cap() int { return len(r.recs) }

// Append stores a record and returns its sequence number.
func (r *Ring) Append(level types.Level, msg string) uint32 {
	h, m, s := timex.HMS(r.clock())
	msg = strx.Truncate(msg, r.limit)

	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.recs[seq&r.mask] = types.LogRecord{
		Seq:     seq,
		Hour:    h,
		Minute:  m,
		Second:  s,
		Level:   level,
		Message: msg,
	}
	r.mu.Unlock()
	return seq
}

// Next returns the sequence the next Append will get.
func (r *Ring) Next() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq + 1
}

// Since returns held records with Seq >= since, oldest first.
// Records already overwritten are simply absent.
func (r *Ring) Since(since uint32) []types.LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	first := r.oldest()
	if first == 0 {
		return nil
	}
	if since < first {
		since = first
	}
	if since > r.seq {
		return nil
	}
	out := make([]types.LogRecord, 0, r.seq-since+1)
	for s := since; s <= r.seq; s++ {
		out = append(out, r.recs[s&r.mask])
	}
	return out
}

// oldest returns the lowest held sequence, 0 when empty.
func (r *Ring) oldest() uint32 {
	if r.seq == 0 {
		return 0
	}
	n := uint32(len(r.recs))
	if r.seq <= n {
		return 1
	}
	return r.seq - n + 1
}
