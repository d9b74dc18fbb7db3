// Package behavior provides behavior-tree definitions, a registry of named
// trees, and their compilation onto go-behaviortree for execution.
//
// Trees are described once as immutable Node values built from Sequence,
// Selector, IfElse, Not, Closure and Sub. A Registry stores them by name and,
// on Resolve, rewrites every Sub(name) into a direct index so that no name
// lookups happen while ticking. Instantiate binds a resolved tree to one
// agent's context and returns a bt.Node to tick once per simulation step.
package behavior

import (
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
)

// Status is the result of ticking a node.
type Status uint8

const (
	// Failure means the node did not achieve its goal this tick.
	Failure Status = iota
	// Success means the node achieved its goal this tick.
	Success
	// Running means the node is partway through multi-tick work. Leaves that
	// return Running keep their continuation state in the agent's blackboard.
	Running
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case Failure:
		return "failure"
	case Success:
		return "success"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Of converts a boolean outcome into Success or Failure.
func Of(ok bool) Status {
	if ok {
		return Success
	}
	return Failure
}

func (s Status) bt() bt.Status {
	switch s {
	case Success:
		return bt.Success
	case Running:
		return bt.Running
	default:
		return bt.Failure
	}
}

func fromBT(s bt.Status) Status {
	switch s {
	case bt.Success:
		return Success
	case bt.Running:
		return Running
	default:
		return Failure
	}
}
