package tasks

import (
	"fmt"
	"iter"
)

// Handle is a stable reference to one slot of one Queue. Index selects the
// slot; Generation must match the slot's current generation for the handle to
// be valid. Handles from another queue are either out of range or stale, and
// every operation on them fails without panicking.
type Handle struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index, h.Generation)
}

// SlotState is the lifecycle state of an occupied slot.
type SlotState uint8

const (
	SlotFree SlotState = iota
	SlotAvailable
	SlotClaimed
)

// String returns the lowercase name of the state.
func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotAvailable:
		return "available"
	case SlotClaimed:
		return "claimed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SlotState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type slot struct {
	gen   uint32
	state SlotState
	task  Task
}

// Entry is a read-only view of one occupied slot.
type Entry struct {
	Handle Handle    `json:"handle"`
	State  SlotState `json:"state"`
	Task   Task      `json:"task"`
}

// Queue is the slotted free-list of tasks owned by one task source.
//
// Slots move Available -> Claimed on Take. From Claimed, Complete frees the
// slot for reuse under a new generation, and Cancel puts the task back up as
// Available under the same handle. Queue is not safe for concurrent use; claims
// must be serialized by the caller.
type Queue struct {
	slots     []slot
	free      []uint32
	available int
	claimed   int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) lookup(h Handle) *slot {
	if int(h.Index) >= len(q.slots) {
		return nil
	}
	s := &q.slots[h.Index]
	if s.state == SlotFree || s.gen != h.Generation {
		return nil
	}
	return s
}

// Push adds an Available task and returns its handle.
func (q *Queue) Push(t Task) Handle {
	var idx uint32
	if n := len(q.free); n > 0 {
		idx = q.free[n-1]
		q.free = q.free[:n-1]
	} else {
		idx = uint32(len(q.slots))
		q.slots = append(q.slots, slot{})
	}
	s := &q.slots[idx]
	s.state = SlotAvailable
	s.task = t
	q.available++
	return Handle{Index: idx, Generation: s.gen}
}

// Take claims an Available task and returns it. It fails if the handle is
// stale or the task is already claimed.
func (q *Queue) Take(h Handle) (Task, bool) {
	s := q.lookup(h)
	if s == nil || s.state != SlotAvailable {
		return Task{}, false
	}
	s.state = SlotClaimed
	q.available--
	q.claimed++
	return s.task, true
}

// Cancel releases a claim and offers the task again under the same handle.
// Returns false unless the slot is currently Claimed.
func (q *Queue) Cancel(h Handle) bool {
	s := q.lookup(h)
	if s == nil || s.state != SlotClaimed {
		return false
	}
	s.state = SlotAvailable
	q.claimed--
	q.available++
	return true
}

// Complete resolves a claim and frees the slot. The handle, and any copy of
// it, is stale afterwards. Returns false unless the slot is currently Claimed.
func (q *Queue) Complete(h Handle) bool {
	s := q.lookup(h)
	if s == nil || s.state != SlotClaimed {
		return false
	}
	q.claimed--
	q.release(h.Index)
	return true
}

// Withdraw removes an Available task, e.g. when its source is reconfigured.
// Claimed tasks cannot be withdrawn; they must be completed or cancelled.
func (q *Queue) Withdraw(h Handle) bool {
	s := q.lookup(h)
	if s == nil || s.state != SlotAvailable {
		return false
	}
	q.available--
	q.release(h.Index)
	return true
}

func (q *Queue) release(idx uint32) {
	s := &q.slots[idx]
	s.state = SlotFree
	s.task = Task{}
	s.gen++
	q.free = append(q.free, idx)
}

// IsAvailable reports whether h refers to an Available task.
func (q *Queue) IsAvailable(h Handle) bool {
	s := q.lookup(h)
	return s != nil && s.state == SlotAvailable
}

// Get returns the entry for h, if the handle is valid.
func (q *Queue) Get(h Handle) (Entry, bool) {
	s := q.lookup(h)
	if s == nil {
		return Entry{}, false
	}
	return Entry{Handle: h, State: s.state, Task: s.task}, true
}

// All yields every occupied slot in index order.
func (q *Queue) All() iter.Seq2[Handle, Entry] {
	return func(yield func(Handle, Entry) bool) {
		for i := range q.slots {
			s := &q.slots[i]
			if s.state == SlotFree {
				continue
			}
			h := Handle{Index: uint32(i), Generation: s.gen}
			if !yield(h, Entry{Handle: h, State: s.state, Task: s.task}) {
				return
			}
		}
	}
}

// Len returns the number of occupied slots.
func (q *Queue) Len() int { return q.available + q.claimed }

// Available returns the number of Available tasks.
func (q *Queue) Available() int { return q.available }

// Claimed returns the number of Claimed tasks.
func (q *Queue) Claimed() int { return q.claimed }
