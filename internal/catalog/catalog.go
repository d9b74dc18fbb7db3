// Package catalog loads the read-only reaction definitions that tasks refer
// to. Definitions are resolved once at startup and never change afterwards.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-colony/internal/economy"
	"github.com/talgya/mini-colony/internal/tasks"
)

//go:embed reactions.yaml
var builtinReactions []byte

// Reaction is a data-defined transformation a task performs on completion.
type Reaction struct {
	ID         string          `yaml:"id" json:"id"`
	Kind       tasks.Kind      `yaml:"kind" json:"kind"`
	Workshop   string          `yaml:"workshop,omitempty" json:"workshop,omitempty"` // Empty for site work (dig, chop)
	TimeTicks  int             `yaml:"time_ticks" json:"time_ticks"`
	Inputs     []economy.Stack `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs    []economy.Stack `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	DropAtSite bool            `yaml:"drop_at_site,omitempty" json:"drop_at_site,omitempty"`
}

// Reactions is the loaded reaction catalog keyed by ID. Order keeps the IDs
// in file order; workshops queue their orders in that order.
type Reactions struct {
	ByID  map[string]Reaction
	Order []string
}

type reactionsFile struct {
	Reactions []Reaction `yaml:"reactions"`
}

// Default returns the built-in catalog.
func Default() (*Reactions, error) {
	return Parse(builtinReactions)
}

// Load reads a catalog from a YAML file. An empty path loads the built-in
// catalog.
func Load(path string) (*Reactions, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reactions: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog.
func Parse(data []byte) (*Reactions, error) {
	var f reactionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse reactions: %w", err)
	}
	if len(f.Reactions) == 0 {
		return nil, errors.New("no reactions defined")
	}

	byID := make(map[string]Reaction, len(f.Reactions))
	order := make([]string, 0, len(f.Reactions))
	for i, r := range f.Reactions {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("reaction %d: %w", i, err)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate reaction %q", r.ID)
		}
		byID[r.ID] = r
		order = append(order, r.ID)
	}
	return &Reactions{ByID: byID, Order: order}, nil
}

// Validate checks a single definition.
func (r Reaction) Validate() error {
	if r.ID == "" {
		return errors.New("missing id")
	}
	if r.TimeTicks <= 0 {
		return fmt.Errorf("reaction %q: time_ticks must be positive", r.ID)
	}
	if len(r.Outputs) == 0 {
		return fmt.Errorf("reaction %q: no outputs", r.ID)
	}
	for _, s := range append(append([]economy.Stack{}, r.Inputs...), r.Outputs...) {
		if s.Count <= 0 {
			return fmt.Errorf("reaction %q: %s count must be positive", r.ID, s.Good)
		}
	}
	seen := make(map[economy.Good]bool, len(r.Inputs))
	for _, s := range r.Inputs {
		if seen[s.Good] {
			return fmt.Errorf("reaction %q: input %s listed twice", r.ID, s.Good)
		}
		seen[s.Good] = true
	}
	return nil
}

// Get returns the reaction with the given ID.
func (c *Reactions) Get(id string) (Reaction, bool) {
	r, ok := c.ByID[id]
	return r, ok
}

// ForWorkshop returns the reactions performed at a workshop type, in file
// order.
func (c *Reactions) ForWorkshop(workshop string) []Reaction {
	if workshop == "" {
		return nil
	}
	return c.filter(func(r Reaction) bool { return r.Workshop == workshop })
}

// ForKind returns the site reactions (no workshop) of a task kind, in file
// order.
func (c *Reactions) ForKind(kind tasks.Kind) []Reaction {
	return c.filter(func(r Reaction) bool { return r.Kind == kind && r.Workshop == "" })
}

func (c *Reactions) filter(keep func(Reaction) bool) []Reaction {
	var out []Reaction
	for _, id := range c.Order {
		if r := c.ByID[id]; keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// IDs returns every reaction ID, sorted.
func (c *Reactions) IDs() []string {
	out := make([]string, 0, len(c.ByID))
	for id := range c.ByID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
