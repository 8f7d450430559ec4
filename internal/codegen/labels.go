package codegen

import "fmt"

// methodLabel is the emitter label a method's first instruction is
// defined under.
func methodLabel(methodFullName string) string {
	return "method$" + methodFullName
}

// ilLabel names the synthetic label standing for one IL offset inside a
// method, so a branch can reference code that has not been lowered yet
// (forward branch) or already has (backward branch) without the
// generator needing two passes over the instruction stream.
func ilLabel(methodFullName string, ilOffset int) string {
	return fmt.Sprintf("%s@%d", methodFullName, ilOffset)
}

// localSkipLabel names a one-off label local to a single compound
// branch lowering (ble.s/bgt.s need an internal fall-through target
// that no IL offset names).
func localSkipLabel(methodFullName string, ilOffset int, tag string) string {
	return fmt.Sprintf("%s@%d$%s", methodFullName, ilOffset, tag)
}

const (
	mul16Label   = "runtime$mul16"
	div16Label   = "runtime$div16"
	memcpyLabel  = "runtime$memcpy"
	memsetLabel  = "runtime$memset"
)
