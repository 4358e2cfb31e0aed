package bytecode

import (
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"
)

// Execution limits. Exceeding either is a runtime error.
const (
	MaxFrames = 64
	MaxStack  = MaxFrames * 64
)

// CallFrame records one active function invocation: the closure being
// executed, the instruction pointer into its bytecode, and the base
// index into the value stack where slot 0 (the callee) lives.
type CallFrame struct {
	closure  *Closure
	ip       int
	slotBase int
}

// VM executes compiled Groove closures. A VM is single-threaded: the
// dispatch loop is the only mutator of its stacks and globals. Two VM
// instances are fully independent.
type VM struct {
	stack   []Value
	frames  []CallFrame
	globals map[string]Value
	natives map[string]*NativeFunction

	output []string // lines emitted by Print

	// Stdout, when set, additionally receives each printed line.
	Stdout io.Writer

	// Trace enables per-instruction logging through the groove.vm logger.
	Trace bool

	log commonlog.Logger
}

// NewVM creates a VM with the built-in natives installed.
func NewVM() *VM {
	vm := &VM{
		stack:   make([]Value, 0, MaxStack),
		frames:  make([]CallFrame, 0, MaxFrames),
		globals: make(map[string]Value),
		natives: make(map[string]*NativeFunction),
		log:     commonlog.GetLogger("groove.vm"),
	}
	vm.registerBuiltins()
	return vm
}

// Reset clears all execution state. Native functions, both built-in and
// host-defined, are re-registered.
func (vm *VM) Reset() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.globals = make(map[string]Value)
	vm.output = nil
	for name, nf := range vm.natives {
		vm.globals[name] = NativeValue(nf)
	}
}

// DefineNative registers a host function under name in the globals table.
// The callback must not retain its argument slice beyond the call.
func (vm *VM) DefineNative(name string, arity uint8, fn NativeFn) {
	nf := &NativeFunction{Name: name, Arity: arity, Fn: fn}
	vm.natives[name] = nf
	vm.globals[name] = NativeValue(nf)
}

// Compile produces an executable top-level closure without running it.
func (vm *VM) Compile(source string) (*Closure, error) {
	return Compile(source)
}

// Interpret compiles and runs source. On normal termination it returns
// the script's result value: the last value pushed before the root
// frame returned.
func (vm *VM) Interpret(source string) (Value, error) {
	closure, err := vm.Compile(source)
	if err != nil {
		return Value{}, err
	}
	return vm.RunClosure(closure)
}

// RunClosure executes a compiled top-level closure against the VM's
// globals, e.g. one loaded from the chunk cache.
func (vm *VM) RunClosure(closure *Closure) (Value, error) {
	vm.push(ClosureValue(closure))
	if err := vm.callValue(ClosureValue(closure), 0); err != nil {
		return Value{}, err
	}
	result, err := vm.run()
	if err != nil {
		// Abandon whatever the failed program left behind.
		vm.stack = vm.stack[:0]
		vm.frames = vm.frames[:0]
		return Value{}, err
	}
	return result, nil
}

// OutputLog returns the lines printed so far, joined with newlines.
func (vm *VM) OutputLog() string {
	return strings.Join(vm.output, "\n")
}

// OutputLines returns the printed lines.
func (vm *VM) OutputLines() []string {
	return vm.output
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

func (vm *VM) run() (Value, error) {
	frame := vm.currentFrame()

	for {
		if len(vm.stack) >= MaxStack-1 {
			return Value{}, vm.runtimeError(frame, "value stack overflow")
		}

		op := Opcode(vm.readByte(frame))

		if vm.Trace {
			vm.log.Debugf("[%04x] %-12s sp=%d", frame.ip-1, op, len(vm.stack))
		}

		switch op {
		// ============ Constants ============
		case OpConstant:
			idx := vm.readByte(frame)
			vm.push(frame.closure.Fn.Chunk.Constants[idx])

		case OpTrue:
			vm.push(BoolValue(true))

		case OpFalse:
			vm.push(BoolValue(false))

		case OpEmpty:
			vm.push(EmptyValue())

		// ============ Stack ============
		case OpPop:
			vm.pop()

		// ============ Variables ============
		case OpGetLocal:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.slotBase+int(slot)])

		case OpSetLocal:
			slot := vm.readByte(frame)
			vm.stack[frame.slotBase+int(slot)] = vm.peek(0)

		case OpGetGlobal:
			name := vm.readName(frame)
			value, ok := vm.globals[name]
			if !ok {
				return Value{}, vm.runtimeError(frame, "undefined variable '%s'", name)
			}
			vm.push(value)

		case OpDefineGlobal:
			name := vm.readName(frame)
			vm.globals[name] = vm.pop()

		case OpSetGlobal:
			name := vm.readName(frame)
			if _, ok := vm.globals[name]; !ok {
				return Value{}, vm.runtimeError(frame, "undefined variable '%s'", name)
			}
			vm.globals[name] = vm.peek(0)

		case OpGetUpvalue:
			idx := vm.readByte(frame)
			vm.push(frame.closure.Upvalues[idx].Value)

		case OpSetUpvalue:
			idx := vm.readByte(frame)
			frame.closure.Upvalues[idx].Value = vm.peek(0)

		// ============ Comparison ============
		case OpIsEqual:
			rhs := vm.pop()
			lhs := vm.pop()
			vm.push(BoolValue(lhs.Equal(rhs)))

		case OpGreater:
			rhs := vm.pop()
			lhs := vm.pop()
			result, err := lhs.Greater(rhs)
			if err != nil {
				return Value{}, vm.attachLine(frame, err)
			}
			vm.push(BoolValue(result))

		case OpLess:
			rhs := vm.pop()
			lhs := vm.pop()
			result, err := lhs.Less(rhs)
			if err != nil {
				return Value{}, vm.attachLine(frame, err)
			}
			vm.push(BoolValue(result))

		// ============ Arithmetic ============
		case OpAdd:
			if err := vm.binaryOp(frame, Value.Add); err != nil {
				return Value{}, err
			}

		case OpSubtract:
			if err := vm.binaryOp(frame, Value.Subtract); err != nil {
				return Value{}, err
			}

		case OpMultiply:
			if err := vm.binaryOp(frame, Value.Multiply); err != nil {
				return Value{}, err
			}

		case OpDivide:
			if err := vm.binaryOp(frame, Value.Divide); err != nil {
				return Value{}, err
			}

		case OpModulus:
			if err := vm.binaryOp(frame, Value.Modulus); err != nil {
				return Value{}, err
			}

		case OpNegate:
			value, err := vm.pop().Negate()
			if err != nil {
				return Value{}, vm.attachLine(frame, err)
			}
			vm.push(value)

		case OpNot:
			vm.push(BoolValue(!vm.pop().IsTruthy()))

		// ============ Output ============
		case OpPrint:
			line := vm.pop().ToString()
			vm.output = append(vm.output, line)
			if vm.Stdout != nil {
				fmt.Fprintln(vm.Stdout, line)
			}

		// ============ Control flow ============
		case OpJump:
			offset := vm.readShort(frame)
			frame.ip += int(offset)

		case OpJumpIfFalse:
			offset := vm.readShort(frame)
			// The condition stays on the stack; each branch arm pops it.
			if !vm.peek(0).IsTruthy() {
				frame.ip += int(offset)
			}

		case OpLoop:
			offset := vm.readShort(frame)
			frame.ip -= int(offset)

		// ============ Calls and closures ============
		case OpCall:
			argCount := int(vm.readByte(frame))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return Value{}, vm.attachLine(frame, err)
			}
			frame = vm.currentFrame()

		case OpClosure:
			idx := vm.readByte(frame)
			prototype := frame.closure.Fn.Chunk.Constants[idx].Closure().Fn
			closure := NewClosure(prototype)
			for i := range closure.Upvalues {
				isLocal := vm.readByte(frame) != 0
				index := vm.readByte(frame)
				if isLocal {
					// Snapshot capture: the cell starts from the current
					// value of the enclosing frame's slot.
					closure.Upvalues[i] = &Upvalue{Value: vm.stack[frame.slotBase+int(index)]}
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			vm.push(ClosureValue(closure))

		case OpReturn:
			result := vm.pop()
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.stack = vm.stack[:0]
				return result, nil
			}
			// Discard the callee and argument slots, then push the result.
			vm.stack = vm.stack[:frame.slotBase]
			vm.push(result)
			frame = vm.currentFrame()

		default:
			return Value{}, vm.runtimeError(frame, "unknown opcode 0x%02x", byte(op))
		}
	}
}

// callValue invokes a callable sitting below its arguments on the stack.
func (vm *VM) callValue(callee Value, argCount int) error {
	switch callee.Type() {
	case ValClosure:
		closure := callee.Closure()
		if argCount != int(closure.Fn.ParamCount) {
			return runtimeErrorf("expected %d arguments but got %d", closure.Fn.ParamCount, argCount)
		}
		if len(vm.frames) >= MaxFrames {
			return runtimeErrorf("stack overflow")
		}
		vm.frames = append(vm.frames, CallFrame{
			closure:  closure,
			slotBase: len(vm.stack) - argCount - 1,
		})
		return nil

	case ValNative:
		native := callee.Native()
		if argCount != int(native.Arity) {
			return runtimeErrorf("expected %d arguments but got %d", native.Arity, argCount)
		}
		args := vm.stack[len(vm.stack)-argCount:]
		result, err := native.Fn(args)
		if err != nil {
			return err
		}
		vm.stack = vm.stack[:len(vm.stack)-argCount-1]
		vm.push(result)
		return nil
	}
	return runtimeErrorf("can only call functions")
}

// Stack helpers

func (vm *VM) push(value Value) {
	vm.stack = append(vm.stack, value)
}

func (vm *VM) pop() Value {
	value := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return value
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[len(vm.stack)-1-distance]
}

// binaryOp pops two operands and pushes op(lhs, rhs).
func (vm *VM) binaryOp(frame *CallFrame, op func(Value, Value) (Value, error)) error {
	rhs := vm.pop()
	lhs := vm.pop()
	result, err := op(lhs, rhs)
	if err != nil {
		return vm.attachLine(frame, err)
	}
	vm.push(result)
	return nil
}

// Bytecode reading helpers

func (vm *VM) currentFrame() *CallFrame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) readByte(frame *CallFrame) byte {
	b := frame.closure.Fn.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readShort(frame *CallFrame) uint16 {
	value := frame.closure.Fn.Chunk.readUint16(frame.ip)
	frame.ip += 2
	return value
}

// readName reads a constant-pool index operand and returns the string it
// names.
func (vm *VM) readName(frame *CallFrame) string {
	idx := vm.readByte(frame)
	return frame.closure.Fn.Chunk.Constants[idx].Str()
}

// Error helpers

func (vm *VM) runtimeError(frame *CallFrame, format string, args ...any) error {
	return &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Line:    frame.closure.Fn.Chunk.Line(frame.ip - 1),
	}
}

// attachLine fills in the source line on runtime errors raised by value
// operations and native callbacks.
func (vm *VM) attachLine(frame *CallFrame, err error) error {
	if rerr, ok := err.(*RuntimeError); ok && rerr.Line == 0 {
		rerr.Line = frame.closure.Fn.Chunk.Line(frame.ip - 1)
	}
	return err
}
