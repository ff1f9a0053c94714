// Package player holds self-player state: identity, stats, combat flags —
// §2's "Player state" row. It is one of the read-only state stores the
// emulation engine consults but never writes (§3 "Ownership").
package player

// State is the self-player's live state, reset on S_LOGIN per §3.
type State struct {
	EntityID uint64

	HP, MaxHP       int64
	MP, MaxMP       int64
	Stamina         int64
	AttackSpeed     float64

	Dead    bool
	Mounted bool
	Loading bool

	InParty bool
}

// CanCast reports whether the player is in a state that permits issuing a
// skill-start request at all, independent of per-skill validation — the
// coarse gate referenced by §4.7.2 step 1 ("user cannot cast (dead/
// mounted/loading)").
func (s *State) CanCast() bool {
	return !s.Dead && !s.Mounted && !s.Loading
}

// ResetOnLogin restores zeroed state, per §3's lifecycle rule.
func (s *State) ResetOnLogin() {
	*s = State{}
}
