package agents

import (
	"github.com/talgya/mini-colony/internal/blackboard"
	"github.com/talgya/mini-colony/internal/catalog"
	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/taskcache"
	"github.com/talgya/mini-colony/internal/tasks"
	"github.com/talgya/mini-colony/internal/world"
)

// MoveParameters tells the locomotion layer where the agent is headed.
type MoveParameters struct {
	Target    world.Position `json:"target"`
	Tolerance int            `json:"tolerance"` // Chebyshev distance that counts as arrived
}

// ReactionParameters is the resolved work an agent performs at a task source.
type ReactionParameters struct {
	Reaction catalog.Reaction `json:"reaction"`
	Source   world.EntityID   `json:"source"`
	Site     world.Position   `json:"site"`
	Task     tasks.Task       `json:"task"`
}

// Abandoned is a task the agent just cancelled. It is not retaken before Until.
type Abandoned struct {
	Slot  taskcache.Slot `json:"slot"`
	Until uint64         `json:"until"`
}

// Blackboard keys used by the task program.
var (
	CurrentTask      = blackboard.NewKey[tasks.Record]("current_task")
	LastTask         = blackboard.NewKey[tasks.LastTask]("last_task")
	Move             = blackboard.NewKey[MoveParameters]("move_parameters")
	MissingReagent   = blackboard.NewKey[economy.Good]("missing_reagent")
	Reaction         = blackboard.NewKey[ReactionParameters]("reaction_parameters")
	ReactionProgress = blackboard.NewKey[int]("reaction_progress")
	PickupTarget     = blackboard.NewKey[world.EntityID]("pickup_target")
	AbandonedTask    = blackboard.NewKey[Abandoned]("abandoned_task")
)

const (
	// WorkTolerance is how close an agent must stand to a task source.
	WorkTolerance = 1
	// PickupTolerance is how close an agent must stand to an item pile.
	PickupTolerance = 0
	// AbandonCooldown is how many ticks a cancelled task is left to others.
	AbandonCooldown = 30
)
