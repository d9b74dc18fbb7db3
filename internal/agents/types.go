// Package agents provides the colonist data model, the per-agent blackboard
// keys, and the behavior program that drives colonists through their work.
package agents

import (
	"fmt"
	"strings"

	"github.com/talgya/mini-colony/internal/blackboard"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// Profession is a colonist's trade. It determines the default task priorities.
type Profession uint8

const (
	ProfessionLaborer    Profession = iota // Does a bit of everything
	ProfessionMiner                        // Digs, some masonry
	ProfessionWoodcutter                   // Fells trees, some carpentry
	ProfessionCarpenter
	ProfessionMason
)

// NumProfessions is the total number of professions.
const NumProfessions = 5

var professionNames = [NumProfessions]string{
	ProfessionLaborer:    "laborer",
	ProfessionMiner:      "miner",
	ProfessionWoodcutter: "woodcutter",
	ProfessionCarpenter:  "carpenter",
	ProfessionMason:      "mason",
}

// String returns the lowercase name of the profession.
func (p Profession) String() string {
	if int(p) < NumProfessions {
		return professionNames[p]
	}
	return fmt.Sprintf("profession(%d)", uint8(p))
}

// ParseProfession looks a profession up by name, case-insensitively.
func ParseProfession(name string) (Profession, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range professionNames {
		if n == name {
			return Profession(i), nil
		}
	}
	return 0, fmt.Errorf("unknown profession %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (p Profession) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Profession) UnmarshalText(b []byte) error {
	parsed, err := ParseProfession(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Agent is a colonist. Its position lives in the world's entity registry under
// ID; everything the behavior program remembers between ticks lives in Board.
type Agent struct {
	ID         world.EntityID   `json:"id"`
	Name       string           `json:"name"`
	Profession Profession       `json:"profession"`
	Priorities tasks.Priorities `json:"priorities"`

	// Board is the agent's scratch store. It is never persisted.
	Board *blackboard.Blackboard `json:"-"`

	// Work history, newest last (bounded, see MaxWorkLog).
	WorkLog []WorkEntry `json:"work_log,omitempty"`

	// Counters
	Completed uint32 `json:"completed"`
	Cancelled uint32 `json:"cancelled"`

	BornTick uint64 `json:"born_tick"`
}

// NewAgent creates a colonist with an empty blackboard.
func NewAgent(id world.EntityID, name string, prof Profession, prio tasks.Priorities) *Agent {
	return &Agent{
		ID:         id,
		Name:       name,
		Profession: prof,
		Priorities: prio,
		Board:      blackboard.New(),
	}
}

// CurrentTask returns the agent's active claim, if any.
func (a *Agent) CurrentTask() (tasks.Record, bool) {
	return blackboard.Get(a.Board, CurrentTask)
}

// LastTask returns the agent's most recently resolved claim, if any.
func (a *Agent) LastTask() (tasks.LastTask, bool) {
	return blackboard.Get(a.Board, LastTask)
}

// Busy reports whether the agent currently holds a claim.
func (a *Agent) Busy() bool {
	return a.Board.Contains(CurrentTask)
}
