package bytecode

import (
	"strings"
	"testing"
)

func TestValueToString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{IntValue(42), "42"},
		{IntValue(-7), "-7"},
		{CharValue('a'), "a"},
		{BoolValue(true), "true"},
		{BoolValue(false), "false"},
		{StrValue("hello"), "hello"},
		{StrValue(""), ""},
		{NativeValue(&NativeFunction{Name: "clock"}), "clock"},
	}
	for _, tt := range tests {
		if got := tt.value.ToString(); got != tt.want {
			t.Errorf("ToString(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestValueTruthiness(t *testing.T) {
	tests := []struct {
		value Value
		want  bool
	}{
		{IntValue(0), false},
		{IntValue(1), true},
		{IntValue(-1), true},
		{CharValue(0), false},
		{CharValue('x'), true},
		{BoolValue(true), true},
		{BoolValue(false), false},
		{StrValue(""), false},
		{StrValue("x"), true},
	}
	for _, tt := range tests {
		if got := tt.value.IsTruthy(); got != tt.want {
			t.Errorf("IsTruthy(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestValueAdd(t *testing.T) {
	tests := []struct {
		lhs, rhs Value
		want     Value
	}{
		{IntValue(1), IntValue(2), IntValue(3)},
		{IntValue(40), CharValue(2), IntValue(42)},
		{IntValue(1), BoolValue(true), IntValue(2)},
		{BoolValue(true), IntValue(1), IntValue(2)},
		{CharValue('a'), IntValue(1), CharValue('b')},
		{StrValue("a"), StrValue("b"), StrValue("ab")},
		{StrValue("n = "), IntValue(7), StrValue("n = 7")},
		{StrValue("ok: "), BoolValue(true), StrValue("ok: true")},
		{IntValue(1), StrValue("41"), IntValue(42)},
	}
	for _, tt := range tests {
		got, err := tt.lhs.Add(tt.rhs)
		if err != nil {
			t.Errorf("Add(%v, %v) error: %v", tt.lhs, tt.rhs, err)
			continue
		}
		if got.Type() != tt.want.Type() || !got.Equal(tt.want) {
			t.Errorf("Add(%v, %v) = %v, want %v", tt.lhs, tt.rhs, got, tt.want)
		}
	}
}

func TestValueAddNonNumericString(t *testing.T) {
	_, err := IntValue(1).Add(StrValue("forty"))
	if err == nil {
		t.Fatal("expected error adding non-numeric string to int")
	}
}

func TestValueArithmeticOnStringsFails(t *testing.T) {
	s := StrValue("x")
	if _, err := s.Subtract(IntValue(1)); err == nil {
		t.Error("Subtract on string should fail")
	}
	if _, err := s.Multiply(IntValue(2)); err == nil {
		t.Error("Multiply on string should fail")
	}
	if _, err := s.Divide(IntValue(2)); err == nil {
		t.Error("Divide on string should fail")
	}
	if _, err := s.Modulus(IntValue(2)); err == nil {
		t.Error("Modulus on string should fail")
	}
}

func TestValueDivision(t *testing.T) {
	got, err := IntValue(84).Divide(IntValue(2))
	if err != nil {
		t.Fatalf("Divide error: %v", err)
	}
	if got.Int() != 42 {
		t.Errorf("84 / 2 = %d, want 42", got.Int())
	}

	if _, err := IntValue(1).Divide(IntValue(0)); err == nil {
		t.Error("division by zero should fail")
	}
	if _, err := IntValue(1).Modulus(IntValue(0)); err == nil {
		t.Error("modulus by zero should fail")
	}
	if _, err := CharValue(10).Divide(CharValue(0)); err == nil {
		t.Error("char division by zero should fail")
	}
}

func TestValueModulus(t *testing.T) {
	got, err := IntValue(17).Modulus(IntValue(5))
	if err != nil {
		t.Fatalf("Modulus error: %v", err)
	}
	if got.Int() != 2 {
		t.Errorf("17 %% 5 = %d, want 2", got.Int())
	}
}

func TestValueNegate(t *testing.T) {
	tests := []struct {
		value Value
		want  Value
	}{
		{IntValue(5), IntValue(-5)},
		{IntValue(-5), IntValue(5)},
		{BoolValue(true), IntValue(-1)},
		{StrValue("x"), StrValue("-x")},
		{StrValue("-x"), StrValue("+x")},
		{StrValue("+x"), StrValue("-x")},
		{StrValue(""), StrValue("")},
	}
	for _, tt := range tests {
		got, err := tt.value.Negate()
		if err != nil {
			t.Errorf("Negate(%v) error: %v", tt.value, err)
			continue
		}
		if got.Type() != tt.want.Type() || !got.Equal(tt.want) {
			t.Errorf("Negate(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestValueEqual(t *testing.T) {
	fn := &Function{Name: "f"}
	cl := &Closure{Fn: fn}
	tests := []struct {
		lhs, rhs Value
		want     bool
	}{
		{IntValue(1), IntValue(1), true},
		{IntValue(1), IntValue(2), false},
		{IntValue(97), CharValue('a'), true}, // numeric promotion
		{BoolValue(true), IntValue(1), true},
		{StrValue("a"), StrValue("a"), true},
		{StrValue("a"), StrValue("b"), false},
		{StrValue("1"), IntValue(1), false},
		{ClosureValue(cl), ClosureValue(cl), true},
		{ClosureValue(cl), ClosureValue(&Closure{Fn: fn}), false},
		{
			NativeValue(&NativeFunction{Name: "clock"}),
			NativeValue(&NativeFunction{Name: "clock"}),
			true, // natives compare by name
		},
	}
	for _, tt := range tests {
		if got := tt.lhs.Equal(tt.rhs); got != tt.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tt.lhs, tt.rhs, got, tt.want)
		}
	}
}

func TestValueOrdering(t *testing.T) {
	less, err := IntValue(1).Less(IntValue(2))
	if err != nil || !less {
		t.Errorf("1 < 2 = (%v, %v), want (true, nil)", less, err)
	}
	greater, err := StrValue("b").Greater(StrValue("a"))
	if err != nil || !greater {
		t.Errorf("'b' > 'a' = (%v, %v), want (true, nil)", greater, err)
	}
	less, err = CharValue('a').Less(IntValue(98))
	if err != nil || !less {
		t.Errorf("'a' < 98 = (%v, %v), want (true, nil)", less, err)
	}
}

func TestValueOrderingCallablesFails(t *testing.T) {
	cl := ClosureValue(&Closure{Fn: &Function{Name: "f"}})
	_, err := cl.Less(IntValue(1))
	if err == nil {
		t.Fatal("ordering a closure should fail")
	}
	if !strings.Contains(err.Error(), "can't compare functions") {
		t.Errorf("error = %q, want comparison failure", err)
	}
	if _, err := IntValue(1).Greater(cl); err == nil {
		t.Error("ordering against a closure should fail")
	}
}

func TestValueOrderingMixedFails(t *testing.T) {
	if _, err := StrValue("1").Less(IntValue(2)); err == nil {
		t.Error("ordering string against int should fail")
	}
}

func TestValueToInt(t *testing.T) {
	tests := []struct {
		value Value
		want  int64
	}{
		{IntValue(42), 42},
		{CharValue('a'), 97},
		{BoolValue(true), 1},
		{StrValue("123"), 123},
		{StrValue("-5"), -5},
	}
	for _, tt := range tests {
		got, err := tt.value.ToInt()
		if err != nil {
			t.Errorf("ToInt(%v) error: %v", tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ToInt(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}

	if _, err := StrValue("abc").ToInt(); err == nil {
		t.Error("ToInt of non-numeric string should fail")
	}
}
