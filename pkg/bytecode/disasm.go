package bytecode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler: human-readable chunk listings (debug aid)
// ---------------------------------------------------------------------------

// Disassemble returns a listing of the chunk's constants and code.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header. Function and
// closure constants are listed recursively after the main code section.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name == "" {
		name = "<script>"
	}
	sb.WriteString(fmt.Sprintf("; === %s ===\n", name))

	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.Constants {
			display := v.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
	}

	sb.WriteString("; Code:\n")
	offset := 0
	lastLine := -1
	for offset < len(c.Code) {
		text, instrLen := c.disassembleInstruction(offset)
		line := c.Line(offset)
		if line != lastLine {
			sb.WriteString(fmt.Sprintf("%04X %4d  %s\n", offset, line, text))
			lastLine = line
		} else {
			sb.WriteString(fmt.Sprintf("%04X    |  %s\n", offset, text))
		}
		offset += instrLen
	}

	// Nested functions
	for _, v := range c.Constants {
		if v.Type() == ValFunction || v.Type() == ValClosure {
			fn := constantFunction(v)
			sb.WriteString("\n")
			sb.WriteString(fn.Chunk.DisassembleWithName(fn.Name))
		}
	}

	return sb.String()
}

// DisassembleInstruction returns a human-readable representation of the
// single instruction at offset.
func (c *Chunk) DisassembleInstruction(offset int) string {
	text, _ := c.disassembleInstruction(offset)
	return text
}

// disassembleInstruction decodes one instruction, returning its text and
// total encoded length.
func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	op := Opcode(c.Code[offset])
	switch op {
	case OpConstant:
		idx := c.Code[offset+1]
		return fmt.Sprintf("Constant %d ; %s", idx, c.constantPreview(idx)), 2

	case OpGetLocal, OpSetLocal:
		return fmt.Sprintf("%s %d", op, c.Code[offset+1]), 2

	case OpGetUpvalue, OpSetUpvalue:
		return fmt.Sprintf("%s %d", op, c.Code[offset+1]), 2

	case OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		idx := c.Code[offset+1]
		return fmt.Sprintf("%s %d ; %s", op, idx, c.constantPreview(idx)), 2

	case OpJump, OpJumpIfFalse:
		delta := int(c.readUint16(offset + 1))
		target := offset + 3 + delta
		return fmt.Sprintf("%s %+d (-> %04X)", op, delta, target), 3

	case OpLoop:
		delta := int(c.readUint16(offset + 1))
		target := offset + 3 - delta
		return fmt.Sprintf("Loop %+d (-> %04X)", -delta, target), 3

	case OpCall:
		return fmt.Sprintf("Call argc=%d", c.Code[offset+1]), 2

	case OpClosure:
		idx := c.Code[offset+1]
		length := 2
		text := fmt.Sprintf("Closure %d ; %s", idx, c.constantPreview(idx))
		if int(idx) < len(c.Constants) {
			fn := constantFunction(c.Constants[idx])
			for i := 0; i < int(fn.UpvalueCount); i++ {
				isLocal := c.Code[offset+length] != 0
				index := c.Code[offset+length+1]
				kind := "upvalue"
				if isLocal {
					kind = "local"
				}
				text += fmt.Sprintf(" [%s %d]", kind, index)
				length += 2
			}
		}
		return text, length

	default:
		info := GetOpcodeInfo(op)
		instrLen := 1 + info.OperandLen
		if info.OperandLen == 0 {
			return info.Name, instrLen
		}
		operands := make([]string, 0, info.OperandLen)
		for i := 0; i < info.OperandLen && offset+1+i < len(c.Code); i++ {
			operands = append(operands, fmt.Sprintf("0x%02X", c.Code[offset+1+i]))
		}
		return fmt.Sprintf("%s %s", info.Name, strings.Join(operands, " ")), instrLen
	}
}

func (c *Chunk) constantPreview(idx uint8) string {
	if int(idx) >= len(c.Constants) {
		return "<bad constant>"
	}
	preview := c.Constants[idx].String()
	if len(preview) > 20 {
		preview = preview[:17] + "..."
	}
	return preview
}

// InstructionCount returns the number of instructions in the chunk.
// It iterates through all code, so it is O(n).
func (c *Chunk) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(c.Code) {
		_, instrLen := c.disassembleInstruction(offset)
		offset += instrLen
		count++
	}
	return count
}
