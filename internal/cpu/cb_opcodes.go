package cpu

// CBInstruction is one entry of the CB-prefixed extended instruction
// set: every such opcode is two bytes (0xCB, second), so the table is
// keyed by the second byte alone.
type CBInstruction struct {
	Mnemonic string
	Cycles   int
}

// CBOpcodes covers a small set of CB-prefixed rotate/shift and bit-set
// opcodes, including those the runtime helpers (mul16/div16,
// internal/codegen/helpers.go) emit; the rest of the CB-prefixed set is
// not listed.
var CBOpcodes = map[byte]CBInstruction{
	0x12: {"RL D", 8},
	0x13: {"RL E", 8},
	0x14: {"RL H", 8},
	0x15: {"RL L", 8},
	0x19: {"RR C", 8},
	0x1A: {"RR D", 8},
	0x1B: {"RR E", 8},
	0x23: {"SLA E", 8},
	0x38: {"SRL B", 8},
	0x3A: {"SRL D", 8},
	0xC3: {"SET 0, E", 8},
}

// CBSize is always 2 (the 0xCB prefix byte plus the operation byte) for
// every entry in CBOpcodes.
const CBSize = 2
