package bytecode

import (
	"encoding/binary"
	"fmt"
)

// ChunkVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const ChunkVersion uint16 = 1

// Magic bytes for serialized chunks: "GVBC" (GrooVe ByteCode)
var ChunkMagic = []byte{'G', 'V', 'B', 'C'}

// MaxConstants is the size limit of a chunk's constant pool; operand
// indexes are a single byte.
const MaxConstants = 255

// MaxJump is the largest encodable jump distance.
const MaxJump = 0xFFFF

// Chunk is a mutable container of bytecode: the code bytes, a parallel
// slice of source line numbers, and the constant pool.
// Invariant: len(Code) == len(Lines).
type Chunk struct {
	Code      []byte
	Lines     []uint16 // source line per code byte
	Constants []Value
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:  make([]byte, 0, 64),
		Lines: make([]uint16, 0, 64),
	}
}

// Append adds a single byte to the code section, tagged with its source line.
func (c *Chunk) Append(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, uint16(line))
}

// Emit appends a single-byte opcode and returns its offset.
func (c *Chunk) Emit(op Opcode, line int) int {
	offset := len(c.Code)
	c.Append(byte(op), line)
	return offset
}

// EmitWithOperand appends an opcode with operand bytes and returns its offset.
func (c *Chunk) EmitWithOperand(op Opcode, line int, operands ...byte) int {
	offset := c.Emit(op, line)
	for _, b := range operands {
		c.Append(b, line)
	}
	return offset
}

// AddConstant adds a value to the pool and returns its index. A value
// equal to one already present is deduplicated to the existing index.
// Fails once the pool holds MaxConstants entries.
func (c *Chunk) AddConstant(value Value) (uint8, error) {
	for i, existing := range c.Constants {
		if sameConstant(existing, value) {
			return uint8(i), nil
		}
	}
	if len(c.Constants) >= MaxConstants {
		return 0, &CompileError{Message: fmt.Sprintf("can't exceed %d constants in one chunk", MaxConstants)}
	}
	idx := uint8(len(c.Constants))
	c.Constants = append(c.Constants, value)
	return idx, nil
}

// sameConstant is stricter than Value.Equal: constants of different
// variants never merge, so an Int 0 and a Char '\0' keep separate slots.
func sameConstant(a, b Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	return a.Equal(b)
}

// EmitJump emits a forward jump with a 0xFFFF placeholder offset.
// Returns the offset of the placeholder bytes for later patching.
func (c *Chunk) EmitJump(op Opcode, line int) int {
	c.Emit(op, line)
	c.Append(0xFF, line)
	c.Append(0xFF, line)
	return len(c.Code) - 2
}

// PatchJump back-patches a placeholder emitted by EmitJump so the jump
// lands at the current end of code. Fails if the distance exceeds MaxJump.
func (c *Chunk) PatchJump(placeholderOffset int) error {
	distance := len(c.Code) - placeholderOffset - 2
	if distance > MaxJump {
		return &CompileError{Message: "too much code to jump over"}
	}
	c.Code[placeholderOffset] = byte(distance >> 8)
	c.Code[placeholderOffset+1] = byte(distance)
	return nil
}

// EmitLoop emits a backward jump to loopStart. Fails if the loop body is
// too large to encode.
func (c *Chunk) EmitLoop(loopStart, line int) error {
	c.Emit(OpLoop, line)
	distance := len(c.Code) - loopStart + 2 // include the operand bytes
	if distance > MaxJump {
		return &CompileError{Message: "loop body too large"}
	}
	c.Append(byte(distance>>8), line)
	c.Append(byte(distance), line)
	return nil
}

// Len returns the length of the code section.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// Line returns the source line recorded for the code byte at offset.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return int(c.Lines[offset])
}

// readUint16 reads a big-endian uint16 operand at the given code offset.
func (c *Chunk) readUint16(offset int) uint16 {
	if offset+1 >= len(c.Code) {
		return 0
	}
	return binary.BigEndian.Uint16(c.Code[offset:])
}

// ---------------------------------------------------------------------------
// Serialization: the "GVBC" binary format used by the chunk cache
// ---------------------------------------------------------------------------

// Each serialized constant starts with its ValueType byte as a tag.
// Natives are never serialized; the host re-registers them on every run.

// Serialize encodes the chunk to bytes for caching.
// Format:
//
//	[magic:4] [version:2]
//	[code_len:4] [code:...]
//	[lines:2 each, code_len entries]
//	[const_count:1] [constants:...]
//
// Function and closure constants encode recursively as
// [name_len:2][name][param_count:1][upvalue_count:1][nested chunk body].
func (c *Chunk) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 16+len(c.Code)*3)
	buf = append(buf, ChunkMagic...)
	buf = binary.BigEndian.AppendUint16(buf, ChunkVersion)
	return c.appendBody(buf)
}

func (c *Chunk) appendBody(buf []byte) ([]byte, error) {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)
	for _, line := range c.Lines {
		buf = binary.BigEndian.AppendUint16(buf, line)
	}

	buf = append(buf, byte(len(c.Constants)))
	for _, v := range c.Constants {
		var err error
		buf, err = appendConstant(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendConstant(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, byte(v.Type()))
	switch v.Type() {
	case ValInt:
		buf = binary.BigEndian.AppendUint64(buf, uint64(v.Int()))
	case ValChar:
		buf = append(buf, byte(v.Char()))
	case ValBool:
		if v.Bool() {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case ValStr:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.Str())))
		buf = append(buf, v.Str()...)
	case ValFunction, ValClosure:
		fn := constantFunction(v)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(fn.Name)))
		buf = append(buf, fn.Name...)
		buf = append(buf, fn.ParamCount, fn.UpvalueCount)
		return fn.Chunk.appendBody(buf)
	default:
		return nil, fmt.Errorf("can't serialize %s constant", v.Type())
	}
	return buf, nil
}

func constantFunction(v Value) *Function {
	if v.Type() == ValClosure {
		return v.Closure().Fn
	}
	return v.Function()
}

// Deserialize decodes a chunk from bytes produced by Serialize.
func Deserialize(data []byte) (*Chunk, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode too short: need at least 6 bytes, got %d", len(data))
	}
	if string(data[0:4]) != string(ChunkMagic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", ChunkMagic, data[0:4])
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version > ChunkVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", version, ChunkVersion)
	}

	c, pos, err := readBody(data, 6)
	if err != nil {
		return nil, err
	}
	if pos != len(data) {
		return nil, fmt.Errorf("trailing garbage: %d bytes after chunk", len(data)-pos)
	}
	return c, nil
}

func readBody(data []byte, pos int) (*Chunk, int, error) {
	if pos+4 > len(data) {
		return nil, 0, fmt.Errorf("unexpected end of bytecode reading code length at pos %d", pos)
	}
	codeLen := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4

	if pos+codeLen+codeLen*2 > len(data) {
		return nil, 0, fmt.Errorf("unexpected end of bytecode reading code section: need %d bytes at pos %d", codeLen*3, pos)
	}
	c := NewChunk()
	c.Code = append(c.Code, data[pos:pos+codeLen]...)
	pos += codeLen
	for i := 0; i < codeLen; i++ {
		c.Lines = append(c.Lines, binary.BigEndian.Uint16(data[pos:]))
		pos += 2
	}

	if pos >= len(data) {
		return nil, 0, fmt.Errorf("unexpected end of bytecode reading constant count")
	}
	constCount := int(data[pos])
	pos++

	for i := 0; i < constCount; i++ {
		var v Value
		var err error
		v, pos, err = readConstant(data, pos)
		if err != nil {
			return nil, 0, fmt.Errorf("constant %d: %w", i, err)
		}
		c.Constants = append(c.Constants, v)
	}
	return c, pos, nil
}

func readConstant(data []byte, pos int) (Value, int, error) {
	if pos >= len(data) {
		return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading constant tag")
	}
	tag := ValueType(data[pos])
	pos++

	switch tag {
	case ValInt:
		if pos+8 > len(data) {
			return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading int")
		}
		n := int64(binary.BigEndian.Uint64(data[pos:]))
		return IntValue(n), pos + 8, nil
	case ValChar:
		if pos >= len(data) {
			return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading char")
		}
		return CharValue(int8(data[pos])), pos + 1, nil
	case ValBool:
		if pos >= len(data) {
			return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading bool")
		}
		return BoolValue(data[pos] != 0), pos + 1, nil
	case ValStr:
		if pos+4 > len(data) {
			return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading string length")
		}
		strLen := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if pos+strLen > len(data) {
			return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading string")
		}
		return StrValue(string(data[pos : pos+strLen])), pos + strLen, nil
	case ValFunction, ValClosure:
		if pos+2 > len(data) {
			return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading function name length")
		}
		nameLen := int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2
		if pos+nameLen+2 > len(data) {
			return Value{}, 0, fmt.Errorf("unexpected end of bytecode reading function header")
		}
		fn := &Function{Name: string(data[pos : pos+nameLen])}
		pos += nameLen
		fn.ParamCount = data[pos]
		fn.UpvalueCount = data[pos+1]
		pos += 2
		var err error
		fn.Chunk, pos, err = readBody(data, pos)
		if err != nil {
			return Value{}, 0, err
		}
		if tag == ValFunction {
			return FunctionValue(fn), pos, nil
		}
		return ClosureValue(&Closure{Fn: fn}), pos, nil
	}
	return Value{}, 0, fmt.Errorf("unknown constant tag 0x%02X", byte(tag))
}
