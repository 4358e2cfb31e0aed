package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleInstruction(t *testing.T) {
	c := NewChunk()
	idx, _ := c.AddConstant(StrValue("hello"))
	c.EmitWithOperand(OpConstant, 1, idx)
	c.Emit(OpAdd, 1)
	c.EmitWithOperand(OpGetLocal, 2, 3)
	c.EmitWithOperand(OpCall, 2, 2)
	c.EmitJump(OpJumpIfFalse, 3)
	c.Emit(OpReturn, 3)

	tests := []struct {
		offset int
		want   string
	}{
		{0, `Constant 0 ; "hello"`},
		{2, "Add"},
		{3, "GetLocal 3"},
		{5, "Call argc=2"},
		{10, "Return"},
	}
	for _, tt := range tests {
		if got := c.DisassembleInstruction(tt.offset); got != tt.want {
			t.Errorf("DisassembleInstruction(%d) = %q, want %q", tt.offset, got, tt.want)
		}
	}

	// The unpatched jump decodes with its placeholder distance.
	if got := c.DisassembleInstruction(7); !strings.HasPrefix(got, "JumpIfFalse") {
		t.Errorf("DisassembleInstruction(7) = %q, want JumpIfFalse", got)
	}
}

func TestDisassembleClosurePairs(t *testing.T) {
	inner := NewFunction("inner")
	inner.UpvalueCount = 2

	c := NewChunk()
	idx, _ := c.AddConstant(ClosureValue(&Closure{Fn: inner}))
	c.EmitWithOperand(OpClosure, 1, idx)
	c.Append(1, 1) // local slot 2
	c.Append(2, 1)
	c.Append(0, 1) // enclosing upvalue 0
	c.Append(0, 1)
	c.Emit(OpReturn, 1)

	text, length := c.disassembleInstruction(0)
	if length != 6 {
		t.Errorf("Closure instruction length = %d, want 6", length)
	}
	if !strings.Contains(text, "[local 2]") || !strings.Contains(text, "[upvalue 0]") {
		t.Errorf("Closure decode = %q, want local and upvalue operands", text)
	}

	if got := c.InstructionCount(); got != 2 {
		t.Errorf("InstructionCount() = %d, want 2", got)
	}
}

func TestDisassembleShowsLineNumbers(t *testing.T) {
	c := scriptChunk(t, "print 1;\nprint 2;")
	text := c.Disassemble()
	if !strings.Contains(text, "   1  ") || !strings.Contains(text, "   2  ") {
		t.Errorf("disassembly lacks line numbers:\n%s", text)
	}
	// Repeated lines collapse to a continuation marker.
	if !strings.Contains(text, "   |  ") {
		t.Errorf("disassembly lacks continuation markers:\n%s", text)
	}
}
