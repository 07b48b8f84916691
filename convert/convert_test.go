package convert

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type celsius float64

func TestCastOrConvertFastPathAndConversion(t *testing.T) {
	if got, err := CastOrConvert[int](7); err != nil || got != 7 {
		t.Fatalf("exact: got=%v err=%v", got, err)
	}
	if got, err := CastOrConvert[int64](int32(9)); err != nil || got != 9 {
		t.Fatalf("widen: got=%v err=%v", got, err)
	}
	if got, err := CastOrConvert[celsius](21.5); err != nil || got != 21.5 {
		t.Fatalf("named: got=%v err=%v", got, err)
	}
	if got, err := CastOrConvert[time.Duration](int64(5)); err != nil || got != 5 {
		t.Fatalf("duration: got=%v err=%v", got, err)
	}
	if got, err := CastOrConvert[int](nil); err != nil || got != 0 {
		t.Fatalf("nil should yield zero: got=%v err=%v", got, err)
	}
}

func TestCastOrConvertRejectsIncompatible(t *testing.T) {
	_, err := CastOrConvert[int]("12")
	if !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("expected ErrInvalidCast, got %v", err)
	}
	var ce *CastError
	if !errors.As(err, &ce) || ce.To != reflect.TypeFor[int]() {
		t.Fatalf("expected *CastError to int, got %#v", err)
	}
	// int -> string would silently produce a rune.
	if _, err := CastOrConvert[string](65); !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("int->string must fail, got %v", err)
	}
}

func TestUnboxNullableKeepsNoValue(t *testing.T) {
	if p, err := UnboxNullable[int](nil); err != nil || p != nil {
		t.Fatalf("nil: got=%v err=%v", p, err)
	}
	var np *int
	if p, err := UnboxNullable[int](np); err != nil || p != nil {
		t.Fatalf("nil *int: got=%v err=%v", p, err)
	}
	p, err := UnboxNullable[int](0)
	if err != nil || p == nil || *p != 0 {
		t.Fatalf("zero must stay a value: got=%v err=%v", p, err)
	}
	p, err = UnboxNullable[int](uint8(3))
	if err != nil || p == nil || *p != 3 {
		t.Fatalf("converted: got=%v err=%v", p, err)
	}
}

func TestUnboxRefAliasesOnlyExactPointer(t *testing.T) {
	x := 10
	p, err := UnboxRef[int](&x)
	if err != nil {
		t.Fatal(err)
	}
	*p = 11
	if x != 11 {
		t.Fatalf("UnboxRef must alias the caller's storage, x=%d", x)
	}

	var f float64 = 1
	if _, err := UnboxRef[int](&f); !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("mismatched pointer must fail, got %v", err)
	}
	if _, err := UnboxRef[int](10); !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("plain value must fail, got %v", err)
	}
	if p, err := UnboxRef[int](nil); err != nil || p == nil || *p != 0 {
		t.Fatalf("nil should give fresh zero pointer: %v %v", p, err)
	}
}

func TestCastRef(t *testing.T) {
	type node struct{ n int }
	in := &node{n: 1}
	got, err := CastRef[*node](in)
	if err != nil || got != in {
		t.Fatalf("exact ref: got=%p err=%v", got, err)
	}
	if got, err := CastRef[*node](nil); err != nil || got != nil {
		t.Fatalf("nil ref: got=%v err=%v", got, err)
	}
	if _, err := CastRef[*node](node{}); !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("value for ref must fail, got %v", err)
	}
	if _, err := CastRef[int](nil); !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("nil for value type must fail, got %v", err)
	}
}

func TestToUntyped(t *testing.T) {
	rv, err := To(nil, reflect.TypeFor[string]())
	if err != nil || rv.String() != "" {
		t.Fatalf("nil string: %v %v", rv, err)
	}
	var r error = errors.New("x")
	rv, err = To(r, reflect.TypeFor[error]())
	if err != nil || rv.Type() != reflect.TypeFor[error]() {
		t.Fatalf("assignable to interface: %v %v", rv, err)
	}
	if _, err := To([]int{1}, reflect.TypeFor[[2]int]()); !errors.Is(err, ErrInvalidCast) {
		t.Fatalf("slice->array must be rejected, got %v", err)
	}
}
