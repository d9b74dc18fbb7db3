package world

import "sort"

// EntityKind tags what an entity is, for diagnostics and placement.
type EntityKind uint8

const (
	KindColonist EntityKind = iota
	KindDesignation
	KindWorkshop
	KindItemPile
)

// String returns the lowercase name of the kind.
func (k EntityKind) String() string {
	switch k {
	case KindColonist:
		return "colonist"
	case KindDesignation:
		return "designation"
	case KindWorkshop:
		return "workshop"
	case KindItemPile:
		return "item_pile"
	default:
		return "unknown"
	}
}

// Entity is the registry's record of one live entity.
type Entity struct {
	ID       EntityID   `json:"id"`
	Kind     EntityKind `json:"kind"`
	Position Position   `json:"position"`
}

// Entities is a minimal entity store: liveness and position for every entity.
// Component data lives with the systems that own it.
type Entities struct {
	nextID EntityID
	byID   map[EntityID]*Entity
}

// NewEntities creates an empty registry. IDs start at 1.
func NewEntities() *Entities {
	return &Entities{
		nextID: 1,
		byID:   make(map[EntityID]*Entity),
	}
}

// SetNextID sets the next ID to be issued (used when restoring from DB).
func (e *Entities) SetNextID(id EntityID) {
	if id > e.nextID {
		e.nextID = id
	}
}

// NextID returns the ID the next Spawn will issue.
func (e *Entities) NextID() EntityID {
	return e.nextID
}

// Spawn creates a new entity and returns its ID.
func (e *Entities) Spawn(kind EntityKind, pos Position) EntityID {
	id := e.nextID
	e.nextID++
	e.byID[id] = &Entity{ID: id, Kind: kind, Position: pos}
	return id
}

// Insert registers an entity with a known ID, e.g. a colonist loaded from storage.
func (e *Entities) Insert(id EntityID, kind EntityKind, pos Position) {
	e.byID[id] = &Entity{ID: id, Kind: kind, Position: pos}
	if id >= e.nextID {
		e.nextID = id + 1
	}
}

// Despawn removes an entity. Removing an unknown ID is a no-op.
func (e *Entities) Despawn(id EntityID) {
	delete(e.byID, id)
}

// Alive returns true if the entity exists.
func (e *Entities) Alive(id EntityID) bool {
	_, ok := e.byID[id]
	return ok
}

// Get returns the entity record, or nil if it does not exist.
func (e *Entities) Get(id EntityID) *Entity {
	return e.byID[id]
}

// Position returns the entity's position and whether it is alive.
func (e *Entities) Position(id EntityID) (Position, bool) {
	ent, ok := e.byID[id]
	if !ok {
		return Position{}, false
	}
	return ent.Position, true
}

// Move sets the position of a live entity. Returns false if it does not exist.
func (e *Entities) Move(id EntityID, pos Position) bool {
	ent, ok := e.byID[id]
	if !ok {
		return false
	}
	ent.Position = pos
	return true
}

// Count returns the number of live entities.
func (e *Entities) Count() int {
	return len(e.byID)
}

// OfKind returns the live entities of a kind, ordered by ID.
func (e *Entities) OfKind(kind EntityKind) []Entity {
	var out []Entity
	for _, ent := range e.byID {
		if ent.Kind == kind {
			out = append(out, *ent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
