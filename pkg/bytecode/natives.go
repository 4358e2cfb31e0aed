package bytecode

import "time"

// ---------------------------------------------------------------------------
// Built-in native functions
// ---------------------------------------------------------------------------

// registerBuiltins installs the native functions every VM starts with.
func (vm *VM) registerBuiltins() {
	// clock returns a monotonic reading in nanoseconds since VM
	// construction. Only monotonicity and non-negativity are promised.
	start := time.Now()
	vm.DefineNative("clock", 0, func([]Value) (Value, error) {
		return IntValue(time.Since(start).Nanoseconds()), nil
	})

	vm.DefineNative("square", 1, func(args []Value) (Value, error) {
		return args[0].Multiply(args[0])
	})

	vm.DefineNative("genre", 0, func([]Value) (Value, error) {
		return StrValue("Rock"), nil
	})
}
