package main

import "github.com/merusira/rival/internal/hostproxy"

// devOpcodes is a synthetic byte<->name table for the local dev/test
// relay. This protocol's real client has no published opcode list in
// this corpus (nothing the examples ship speaks it), so hostproxy's
// Session framing only needs distinct byte values round-tripped against
// whatever test client drives the harness, not the production client's
// actual numbering.
var devOpcodes = hostproxy.OpcodeNames{
	0x01: "C_START_SKILL",
	0x02: "C_START_TARGETED_SKILL",
	0x03: "C_START_COMBO_INSTANT_SKILL",
	0x04: "C_START_INSTANCE_SKILL",
	0x05: "C_START_INSTANCE_SKILL_EX",
	0x06: "C_PRESS_SKILL",
	0x07: "C_NOTIMELINE_SKILL",
	0x08: "C_CANCEL_SKILL",
	0x09: "C_CAN_LOCKON_TARGET",
	0x0A: "C_NOTIFY_LOCATION_IN_ACTION",
	0x0B: "C_PLAYER_LOCATION",

	0x40: "S_ACTION_STAGE",
	0x41: "S_ACTION_END",
	0x42: "S_EACH_SKILL_RESULT",
	0x43: "S_CANNOT_START_SKILL",
	0x44: "S_CONNECT_SKILL_ARROW",
	0x45: "S_GRANT_SKILL",
	0x46: "S_INSTANT_MOVE",
	0x47: "S_START_COOLTIME_SKILL",
	0x48: "S_DECREASE_COOLTIME_SKILL",
	0x49: "S_CREST_MESSAGE",
	0x4A: "S_ABNORMALITY_BEGIN",
	0x4B: "S_ABNORMALITY_REFRESH",
	0x4C: "S_ABNORMALITY_END",
	0x4D: "S_CREATURE_LIFE",
	0x4E: "S_DEFEND_SUCCESS",
	0x4F: "S_CAN_LOCKON_TARGET",
	0x50: "S_LOGIN",
	0x51: "S_LOAD_TOPO",
}
