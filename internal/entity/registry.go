package entity

import "github.com/merusira/rival/internal/wire"

// Relation classifies an entity's stance toward the self-player.
type Relation int

const (
	RelationUnknown Relation = iota
	RelationSelf
	RelationParty
	RelationRaid
	RelationAlly
	RelationEnemy
	RelationNeutral
)

// Variant classifies the kind of entity, per §3.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantPlayer
	VariantMob
	VariantNpc
)

// Record is one visible entity, per §3's EntityRecord.
type Record struct {
	ID             uint64
	TemplateID     int32
	HuntingZoneID  int32
	Loc            wire.Loc
	Relation       Relation
	Visible        bool
	Variant        Variant
	HP             int64
	MaxHP          int64
	ServerID       uint64 // optional; 0 when not a player
	PlayerID       uint64 // optional; 0 when not a player
	PvPFlagged     bool   // true when the entity has opted into open PvP, independent of Relation
}

// Registry is the live set of visible entities. It is reset on S_LOGIN and
// cleared on zone change (S_LOAD_TOPO), per §3's lifecycle rule.
type Registry struct {
	store *Store[Record]
	self  uint64
}

func NewRegistry() *Registry {
	return &Registry{store: NewStore[Record]()}
}

// SetSelf records which entity id is the self-player.
func (r *Registry) SetSelf(id uint64) { r.self = id }

// Self returns the self-player's entity id.
func (r *Registry) Self() uint64 { return r.self }

// Upsert inserts or replaces a record.
func (r *Registry) Upsert(rec Record) { r.store.Set(rec.ID, &rec) }

// Get returns a record by id, or nil if not tracked.
func (r *Registry) Get(id uint64) *Record {
	v, ok := r.store.Get(id)
	if !ok {
		return nil
	}
	return v
}

// GetSelf returns the self-player's record, or nil if not yet known.
func (r *Registry) GetSelf() *Record { return r.Get(r.self) }

// Remove drops an entity from the registry (despawn/out-of-range).
func (r *Registry) Remove(id uint64) { r.store.Remove(id) }

// Each visits every tracked entity.
func (r *Registry) Each(fn func(*Record)) {
	r.store.Each(func(_ uint64, rec *Record) { fn(rec) })
}

// ResetOnLogin clears all tracked entities and the self pointer, per §3:
// "Entity, action, cooldown, effect, and position records reset on S_LOGIN".
func (r *Registry) ResetOnLogin() {
	r.store.Clear()
	r.self = 0
}

// ClearOnZoneChange clears tracked entities on S_LOAD_TOPO, per §3, but
// keeps the self pointer (the self-player entity persists across zones).
func (r *Registry) ClearOnZoneChange() {
	self := r.GetSelf()
	r.store.Clear()
	if self != nil {
		r.Upsert(*self)
	}
}
