package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: tagged runtime value
// ---------------------------------------------------------------------------

// ValueType identifies the variant held by a Value.
type ValueType uint8

const (
	ValStr ValueType = iota
	ValInt
	ValChar
	ValBool
	ValFunction
	ValNative
	ValClosure
)

var valueTypeNames = map[ValueType]string{
	ValStr:      "Str",
	ValInt:      "Int",
	ValChar:     "Char",
	ValBool:     "Bool",
	ValFunction: "Func",
	ValNative:   "NtvFn",
	ValClosure:  "Clos",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// Value is a Groove runtime value. Int, Char and Bool share the integer
// payload; Str has its own; callables live in obj.
type Value struct {
	typ ValueType
	n   int64
	s   string
	obj any // *Function, *Closure or *NativeFunction
}

// Constructors

func IntValue(n int64) Value  { return Value{typ: ValInt, n: n} }
func CharValue(c int8) Value  { return Value{typ: ValChar, n: int64(c)} }
func StrValue(s string) Value { return Value{typ: ValStr, s: s} }
func BoolValue(b bool) Value {
	if b {
		return Value{typ: ValBool, n: 1}
	}
	return Value{typ: ValBool}
}

func FunctionValue(fn *Function) Value     { return Value{typ: ValFunction, obj: fn} }
func ClosureValue(cl *Closure) Value       { return Value{typ: ValClosure, obj: cl} }
func NativeValue(nf *NativeFunction) Value { return Value{typ: ValNative, obj: nf} }

// EmptyValue returns the zero/default value pushed by OpEmpty.
func EmptyValue() Value { return IntValue(0) }

// Accessors

func (v Value) Type() ValueType         { return v.typ }
func (v Value) Int() int64              { return v.n }
func (v Value) Char() int8              { return int8(v.n) }
func (v Value) Bool() bool              { return v.n != 0 }
func (v Value) Str() string             { return v.s }
func (v Value) Function() *Function     { return v.obj.(*Function) }
func (v Value) Closure() *Closure       { return v.obj.(*Closure) }
func (v Value) Native() *NativeFunction { return v.obj.(*NativeFunction) }

// IsCallable reports whether the value can be the target of a call.
func (v Value) IsCallable() bool {
	return v.typ == ValClosure || v.typ == ValNative || v.typ == ValFunction
}

func (v Value) isNumeric() bool {
	return v.typ == ValInt || v.typ == ValChar || v.typ == ValBool
}

// IsTruthy reports the truth state of a value: non-zero Int or Char,
// non-empty Str, true Bool. Callables are never truthy.
func (v Value) IsTruthy() bool {
	switch v.typ {
	case ValStr:
		return v.s != ""
	case ValInt, ValChar, ValBool:
		return v.n != 0
	}
	return false
}

// ToString renders the value the way Print does.
func (v Value) ToString() string {
	switch v.typ {
	case ValStr:
		return v.s
	case ValInt:
		return strconv.FormatInt(v.n, 10)
	case ValChar:
		return string(rune(int8(v.n)))
	case ValBool:
		if v.n != 0 {
			return "true"
		}
		return "false"
	case ValFunction:
		fn := v.Function()
		if fn.Name == "" {
			return "<script>"
		}
		return "fn " + fn.Name
	case ValClosure:
		return v.Closure().Name()
	case ValNative:
		return v.Native().Name
	}
	return ""
}

// ToInt converts to an integer: Char and Bool promote, numeric strings
// parse, everything else fails.
func (v Value) ToInt() (int64, error) {
	switch v.typ {
	case ValInt, ValChar, ValBool:
		return v.n, nil
	case ValStr:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, runtimeErrorf("string '%s' cannot be interpreted as an integer", v.s)
		}
		return n, nil
	}
	return 0, runtimeErrorf("can't convert %s to an integer", v.typ)
}

// ToChar converts to a char: Int truncates, Bool becomes '1'/'0', a
// string contributes its first character.
func (v Value) ToChar() (int8, error) {
	switch v.typ {
	case ValInt, ValChar:
		return int8(v.n), nil
	case ValBool:
		if v.n != 0 {
			return '1', nil
		}
		return '0', nil
	case ValStr:
		if v.s == "" {
			return 0, nil
		}
		return int8(v.s[0]), nil
	}
	return 0, runtimeErrorf("can't convert %s to a char", v.typ)
}

// Add implements '+'. Dispatch is on the left operand: a string
// concatenates the stringified right side; Int and Char are arithmetic;
// Bool promotes to Int.
func (v Value) Add(rhs Value) (Value, error) {
	switch v.typ {
	case ValStr:
		return StrValue(v.s + rhs.ToString()), nil
	case ValInt, ValBool:
		n, err := rhs.ToInt()
		if err != nil {
			return Value{}, err
		}
		return IntValue(v.n + n), nil
	case ValChar:
		c, err := rhs.ToChar()
		if err != nil {
			return Value{}, err
		}
		return CharValue(int8(v.n) + c), nil
	}
	return Value{}, runtimeErrorf("can't add to %s", v.typ)
}

// Subtract implements '-'. Strings fail.
func (v Value) Subtract(rhs Value) (Value, error) {
	switch v.typ {
	case ValStr:
		return Value{}, runtimeErrorf("can't subtract from string '%s'", v.s)
	case ValInt, ValBool:
		n, err := rhs.ToInt()
		if err != nil {
			return Value{}, err
		}
		return IntValue(v.n - n), nil
	case ValChar:
		c, err := rhs.ToChar()
		if err != nil {
			return Value{}, err
		}
		return CharValue(int8(v.n) - c), nil
	}
	return Value{}, runtimeErrorf("can't subtract from %s", v.typ)
}

// Multiply implements '*'. Strings fail.
func (v Value) Multiply(rhs Value) (Value, error) {
	switch v.typ {
	case ValStr:
		return Value{}, runtimeErrorf("can't multiply string '%s'", v.s)
	case ValInt, ValBool:
		n, err := rhs.ToInt()
		if err != nil {
			return Value{}, err
		}
		return IntValue(v.n * n), nil
	case ValChar:
		c, err := rhs.ToChar()
		if err != nil {
			return Value{}, err
		}
		return CharValue(int8(v.n) * c), nil
	}
	return Value{}, runtimeErrorf("can't multiply %s", v.typ)
}

// Divide implements '/'. Strings fail; division by zero fails.
func (v Value) Divide(rhs Value) (Value, error) {
	switch v.typ {
	case ValStr:
		return Value{}, runtimeErrorf("can't divide string '%s'", v.s)
	case ValInt, ValBool:
		n, err := rhs.ToInt()
		if err != nil {
			return Value{}, err
		}
		if n == 0 {
			return Value{}, runtimeErrorf("division by zero")
		}
		return IntValue(v.n / n), nil
	case ValChar:
		c, err := rhs.ToChar()
		if err != nil {
			return Value{}, err
		}
		if c == 0 {
			return Value{}, runtimeErrorf("division by zero")
		}
		return CharValue(int8(v.n) / c), nil
	}
	return Value{}, runtimeErrorf("can't divide %s", v.typ)
}

// Modulus implements '%'. Strings fail; modulus by zero fails.
func (v Value) Modulus(rhs Value) (Value, error) {
	switch v.typ {
	case ValStr:
		return Value{}, runtimeErrorf("can't take modulus of string '%s'", v.s)
	case ValInt, ValBool:
		n, err := rhs.ToInt()
		if err != nil {
			return Value{}, err
		}
		if n == 0 {
			return Value{}, runtimeErrorf("modulus by zero")
		}
		return IntValue(v.n % n), nil
	case ValChar:
		c, err := rhs.ToChar()
		if err != nil {
			return Value{}, err
		}
		if c == 0 {
			return Value{}, runtimeErrorf("modulus by zero")
		}
		return CharValue(int8(v.n) % c), nil
	}
	return Value{}, runtimeErrorf("can't take modulus of %s", v.typ)
}

// Negate implements unary '-'. A string flips its sign prefix:
// "-x" -> "+x", "+x" -> "-x", "x" -> "-x", "" -> "".
func (v Value) Negate() (Value, error) {
	switch v.typ {
	case ValInt, ValBool:
		return IntValue(-v.n), nil
	case ValChar:
		return CharValue(-int8(v.n)), nil
	case ValStr:
		if v.s == "" {
			return v, nil
		}
		switch v.s[0] {
		case '-':
			return StrValue("+" + v.s[1:]), nil
		case '+':
			return StrValue("-" + v.s[1:]), nil
		default:
			return StrValue("-" + v.s), nil
		}
	}
	return Value{}, runtimeErrorf("can't negate %s", v.typ)
}

// Equal implements '=='. Values of the same variant compare by payload.
// Across variants, the numeric types (Int, Char, Bool) compare by their
// promoted integer value; natives compare by registered name; anything
// else is unequal.
func (v Value) Equal(rhs Value) bool {
	if v.isNumeric() && rhs.isNumeric() {
		return v.n == rhs.n
	}
	if v.typ != rhs.typ {
		return false
	}
	switch v.typ {
	case ValStr:
		return v.s == rhs.s
	case ValNative:
		return v.Native().Name == rhs.Native().Name
	case ValFunction, ValClosure:
		return v.obj == rhs.obj
	}
	return false
}

// Less implements '<'. Callables fail; strings order lexicographically;
// numeric values order by promoted integer. Ordering a string against a
// number fails.
func (v Value) Less(rhs Value) (bool, error) {
	if err := orderable(v, rhs); err != nil {
		return false, err
	}
	if v.typ == ValStr {
		return v.s < rhs.s, nil
	}
	return v.n < rhs.n, nil
}

// Greater implements '>' with the same domain as Less.
func (v Value) Greater(rhs Value) (bool, error) {
	if err := orderable(v, rhs); err != nil {
		return false, err
	}
	if v.typ == ValStr {
		return v.s > rhs.s, nil
	}
	return v.n > rhs.n, nil
}

func orderable(lhs, rhs Value) error {
	if lhs.IsCallable() || rhs.IsCallable() {
		return runtimeErrorf("can't compare functions")
	}
	if lhs.isNumeric() && rhs.isNumeric() {
		return nil
	}
	if lhs.typ == ValStr && rhs.typ == ValStr {
		return nil
	}
	return runtimeErrorf("can't compare %s with %s", lhs.typ, rhs.typ)
}

// String implements fmt.Stringer for debugging; Print output uses
// ToString instead.
func (v Value) String() string {
	if v.typ == ValStr {
		return strconv.Quote(v.s)
	}
	return v.ToString()
}
