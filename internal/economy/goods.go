// Package economy provides goods and the inventories that hold them: the colony
// stockpile, workshop buffers and loose item piles.
package economy

import (
	"fmt"
	"strings"
)

// Good enumerates the item types colonists produce and consume.
type Good uint8

const (
	GoodStone  Good = iota // Dug out of rock
	GoodLog                // Felled from trees
	GoodPlank              // Sawn from logs
	GoodBlock              // Cut from stone
	GoodBed                // Furniture, planks
	GoodDoor               // Furniture, planks
	GoodTable              // Furniture, blocks
)

// NumGoods is the total number of good types.
const NumGoods = 7

var goodNames = [NumGoods]string{
	GoodStone: "stone",
	GoodLog:   "log",
	GoodPlank: "plank",
	GoodBlock: "block",
	GoodBed:   "bed",
	GoodDoor:  "door",
	GoodTable: "table",
}

// String returns the lowercase name of the good.
func (g Good) String() string {
	if int(g) < NumGoods {
		return goodNames[g]
	}
	return fmt.Sprintf("good(%d)", uint8(g))
}

// ParseGood looks a good up by name, case-insensitively.
func ParseGood(name string) (Good, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range goodNames {
		if n == name {
			return Good(i), nil
		}
	}
	return 0, fmt.Errorf("unknown good %q", name)
}

// MarshalText implements encoding.TextMarshaler so goods serialize by name.
func (g Good) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Good) UnmarshalText(b []byte) error {
	parsed, err := ParseGood(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Stack is a quantity of one good, used for reaction inputs and outputs.
type Stack struct {
	Good  Good `json:"good" yaml:"item"`
	Count int  `json:"count" yaml:"count"`
}
