// Work log: a bounded record of the tasks a colonist has resolved, newest last.
package agents

import (
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

const MaxWorkLog = 50

// WorkEntry records one resolved task.
type WorkEntry struct {
	Tick     uint64         `json:"tick"`
	Kind     tasks.Kind     `json:"kind"`
	Reaction string         `json:"reaction"`
	Source   world.EntityID `json:"source"`
	Outcome  tasks.Outcome  `json:"outcome"`
}

// RecordWork appends an entry to the agent's log and updates its counters.
// When full, the oldest entry is dropped.
func RecordWork(a *Agent, lt tasks.LastTask) WorkEntry {
	e := WorkEntry{
		Tick:     lt.Tick,
		Kind:     lt.Record.Task.Kind,
		Reaction: lt.Record.Task.Reaction,
		Source:   lt.Record.Source,
		Outcome:  lt.Outcome,
	}

	switch lt.Outcome {
	case tasks.OutcomeComplete:
		a.Completed++
	case tasks.OutcomeCancelled:
		a.Cancelled++
	}

	if len(a.WorkLog) >= MaxWorkLog {
		copy(a.WorkLog, a.WorkLog[1:])
		a.WorkLog = a.WorkLog[:len(a.WorkLog)-1]
	}
	a.WorkLog = append(a.WorkLog, e)
	return e
}

// RecentWork returns up to count entries, newest first.
func RecentWork(a *Agent, count int) []WorkEntry {
	if count > len(a.WorkLog) {
		count = len(a.WorkLog)
	}
	out := make([]WorkEntry, 0, count)
	for i := len(a.WorkLog) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, a.WorkLog[i])
	}
	return out
}
