package wire

// Name identifies a packet by its logical name, independent of opcode
// number (Codec resolves only per-patch versions; opcode numbering is
// supplied by the transport, e.g. hostproxy.OpcodeNames). Handlers and
// hook subscribers key off Name, never a raw byte.
type Name string

const (
	// Outbound-from-client skill-start family (§4.7.2).
	NameCStartSkill               Name = "C_START_SKILL"
	NameCStartTargetedSkill       Name = "C_START_TARGETED_SKILL"
	NameCStartComboInstantSkill   Name = "C_START_COMBO_INSTANT_SKILL"
	NameCStartInstanceSkill       Name = "C_START_INSTANCE_SKILL"
	NameCStartInstanceSkillEx     Name = "C_START_INSTANCE_SKILL_EX"
	NameCPressSkill               Name = "C_PRESS_SKILL"
	NameCNoTimelineSkill          Name = "C_NOTIMELINE_SKILL"
	NameCCancelSkill              Name = "C_CANCEL_SKILL"
	NameCCanLockonTarget          Name = "C_CAN_LOCKON_TARGET"
	NameCNotifyLocationInAction   Name = "C_NOTIFY_LOCATION_IN_ACTION"
	NameCPlayerLocation           Name = "C_PLAYER_LOCATION"

	// Server-authoritative / synthesized inbound family.
	NameSActionStage          Name = "S_ACTION_STAGE"
	NameSActionEnd            Name = "S_ACTION_END"
	NameSEachSkillResult      Name = "S_EACH_SKILL_RESULT"
	NameSCannotStartSkill     Name = "S_CANNOT_START_SKILL"
	NameSConnectSkillArrow    Name = "S_CONNECT_SKILL_ARROW"
	NameSGrantSkill           Name = "S_GRANT_SKILL"
	NameSInstantMove          Name = "S_INSTANT_MOVE"
	NameSStartCooltimeSkill   Name = "S_START_COOLTIME_SKILL"
	NameSDecreaseCooltimeSkill Name = "S_DECREASE_COOLTIME_SKILL"
	NameSCrestMessage         Name = "S_CREST_MESSAGE"
	NameSAbnormalityBegin     Name = "S_ABNORMALITY_BEGIN"
	NameSAbnormalityRefresh   Name = "S_ABNORMALITY_REFRESH"
	NameSAbnormalityEnd       Name = "S_ABNORMALITY_END"
	NameSCreatureLife         Name = "S_CREATURE_LIFE"
	NameSDefendSuccess        Name = "S_DEFEND_SUCCESS"
	NameSCanLockonTarget      Name = "S_CAN_LOCKON_TARGET"
	NameSLogin                Name = "S_LOGIN"
	NameSLoadTopo             Name = "S_LOAD_TOPO"
)

// Loc is a world-space location plus facing, used throughout action,
// position, and anti-desync tracking.
type Loc struct {
	X, Y, Z float32
	W       float32 // facing/heading
}

// AnimSeqEntry is one element of an action-stage/skill-result animation
// sequence: a timed movement/distance offset applied during playback.
type AnimSeqEntry struct {
	DurationMs int64
	Distance   float32
}

// ActionStagePacket is both the wire shape of S_ACTION_STAGE and the
// payload the emulation engine synthesizes locally.
type ActionStagePacket struct {
	EntityID  uint64
	Skill     int32
	Stage     int
	Loc       Loc
	AnimSeq   []AnimSeqEntry
	Speed     float64
	ActionID  uint32
}

// ActionEndPacket is both the wire shape of S_ACTION_END and the payload
// synthesized on stage termination, cancel, reaction, or death.
type ActionEndPacket struct {
	EntityID uint64
	Skill    int32
	Type     int
	Loc      Loc
}

// ReactionInfo describes the reaction payload embedded in
// S_EACH_SKILL_RESULT.
type ReactionInfo struct {
	Enable   bool
	AnimSeq  []AnimSeqEntry
	ActionID uint32
}

// SkillResultPacket is the wire shape of S_EACH_SKILL_RESULT.
type SkillResultPacket struct {
	SourceID   uint64
	TargetID   uint64
	Skill      int32
	Reaction   ReactionInfo
	SuperArmor bool // prevents the client from reacting; strippable by internal/smoothblock
}

// StartSkillPacket is the wire shape of the C_START_SKILL family.
type StartSkillPacket struct {
	SkillID      int32
	TargetID     uint64
	Loc          Loc
	Continuation bool
	Press        bool
}

// CancelSkillPacket is the wire shape of C_CANCEL_SKILL.
type CancelSkillPacket struct {
	Type int
}

// AbnormalityPacket is the wire shape of S_ABNORMALITY_BEGIN/REFRESH/END.
type AbnormalityPacket struct {
	TargetID   uint64
	SourceID   uint64
	ID         int32
	DurationMs int64
	Stacks     int
}

// CannotStartSkillPacket is the wire shape of S_CANNOT_START_SKILL.
type CannotStartSkillPacket struct {
	SkillID int32
}

// CooldownPacket is the wire shape of S_START_COOLTIME_SKILL /
// S_DECREASE_COOLTIME_SKILL.
type CooldownPacket struct {
	SkillID      int32
	CooldownMs   int64
	FromServer   bool
	Reset        bool // true for S_CREST_MESSAGE type=6
}

// CreatureLifePacket is the wire shape of S_CREATURE_LIFE.
type CreatureLifePacket struct {
	EntityID uint64
	IsSelf   bool
	Alive    bool
}

// LockonRequestPacket is the wire shape of C_CAN_LOCKON_TARGET.
type LockonRequestPacket struct {
	SkillID  int32
	TargetID uint64
}

// LockonResultPacket is the wire shape of S_CAN_LOCKON_TARGET.
type LockonResultPacket struct {
	TargetID uint64
	Success  bool
}

// InstantMovePacket is the wire shape of S_INSTANT_MOVE.
type InstantMovePacket struct {
	EntityID uint64
	Loc      Loc
}

// GrantSkillPacket is the wire shape of S_GRANT_SKILL, sent while a charge
// or moving-charge skill is winding up (§4.7.3 step 9).
type GrantSkillPacket struct {
	SkillID int32
}

// ConnectSkillArrowPacket is the wire shape of S_CONNECT_SKILL_ARROW
// (§4.7.3 step 8).
type ConnectSkillArrowPacket struct {
	SkillID  int32
	TargetID uint64
}

// PlayerLocationPacket is the wire shape of C_PLAYER_LOCATION.
type PlayerLocationPacket struct {
	Loc Loc
}

// NotifyLocationPacket is the wire shape of C_NOTIFY_LOCATION_IN_ACTION.
type NotifyLocationPacket struct {
	Loc Loc
}
