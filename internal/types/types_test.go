package types

import (
	"errors"
	"math"
	"testing"
)

func TestString(t *testing.T) {
	list := NewGeneric(Class, "List", nil, NewParam("T"))
	tests := []struct {
		typ  *Type
		want string
	}{
		{Int32Type, "int"},
		{NullableOf(Int64Type), "long?"},
		{ArrayOf(StringType), "string[]"},
		{FuncOf([]*Type{Int32Type}, BoolType), "Func<int, bool>"},
		{QuotedOf(FuncOf(nil, Int32Type)), "Expression<Func<int>>"},
		{list, "List<T>"},
		{list.Instantiate(Int32Type), "List<int>"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestNullableOf(t *testing.T) {
	n := NullableOf(Int32Type)
	if NullableOf(n) != n {
		t.Error("expected NullableOf to be idempotent")
	}
	if NullableOf(StringType) != StringType {
		t.Error("expected reference types to stay as they are")
	}
	if !n.CanBeNull() || Int32Type.CanBeNull() || !StringType.CanBeNull() || VoidType.CanBeNull() {
		t.Error("unexpected CanBeNull result")
	}
	if NonNullable(n) != Int32Type {
		t.Errorf("expected int, got %s", NonNullable(n))
	}
}

func TestIdentical(t *testing.T) {
	list := NewGeneric(Class, "List", nil, NewParam("T"))
	a, b := NewClass("A", nil), NewClass("A", nil)
	tests := []struct {
		name string
		x, y *Type
		want bool
	}{
		{"primitive", Int32Type, Int32Type, true},
		{"structural nullable", NullableOf(Int32Type), NullableOf(Int32Type), true},
		{"structural array", ArrayOf(Int32Type), ArrayOf(Int64Type), false},
		{"func", FuncOf([]*Type{Int32Type}, BoolType), FuncOf([]*Type{Int32Type}, BoolType), true},
		{"named by identity", a, b, false},
		{"generic instance", list.Instantiate(Int32Type), list.Instantiate(Int32Type), true},
		{"generic args differ", list.Instantiate(Int32Type), list.Instantiate(StringType), false},
	}
	for _, tt := range tests {
		if got := Identical(tt.x, tt.y); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestSubclassAndAssignable(t *testing.T) {
	if !IsSubclassOf(DivideByZeroExceptionType, ArithmeticExceptionType) {
		t.Error("expected DivideByZeroException to derive from ArithmeticException")
	}
	if !IsSubclassOf(ExceptionType, ExceptionType) {
		t.Error("expected IsSubclassOf to be reflexive")
	}
	if IsSubclassOf(ArithmeticExceptionType, OverflowExceptionType) {
		t.Error("base class is not a subclass of its derived class")
	}
	if !IsException(NullReferenceExceptionType) || IsException(StringType) {
		t.Error("unexpected IsException result")
	}
	if !IsAssignableTo(StringType, ObjectType) || IsAssignableTo(Int32Type, ObjectType) {
		t.Error("object accepts reference types only")
	}
	if !IsAssignableTo(OverflowExceptionType, ExceptionType) {
		t.Error("expected derived exception to be assignable to its base")
	}
}

func TestPredicates(t *testing.T) {
	color := NewEnum("Color", Uint8Type)
	if !IsEnum(NullableOf(color)) || BitSize(color) != 8 {
		t.Error("expected nullable enum with 8-bit underlying type")
	}
	if !IsIntegerOrBool(BoolType) || IsInteger(BoolType) || IsInteger(CharType) {
		t.Error("bool and char are not integers")
	}
	if !IsNumeric(CharType) || !IsFloat(Float32Type) || IsSigned(Uint32Type) {
		t.Error("unexpected numeric classification")
	}
}

func TestZeroAndCheckValue(t *testing.T) {
	if Zero(Int64Type) != int64(0) || Zero(CharType) != uint16(0) || Zero(StringType) != nil {
		t.Error("unexpected zero values")
	}
	if Zero(NewEnum("E", Int16Type)) != int16(0) {
		t.Error("enum zero uses the underlying type")
	}
	if err := CheckValue(int32(1), Int32Type); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := CheckValue(int64(1), Int32Type); err == nil {
		t.Error("expected mismatched width to be rejected")
	}
	if err := CheckValue(nil, Int32Type); err == nil {
		t.Error("expected null int to be rejected")
	}
	if err := CheckValue(nil, NullableOf(Int32Type)); err != nil {
		t.Errorf("expected null int? to be accepted, got %v", err)
	}
}

func TestValueEqual(t *testing.T) {
	arr := []any{int32(1)}
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same int", int32(1), int32(1), true},
		{"different width", int32(1), int64(1), false},
		{"nil", nil, nil, true},
		{"nil vs value", nil, "", false},
		{"NaN is itself", math.NaN(), math.NaN(), true},
		{"signed zero", 0.0, math.Copysign(0, -1), false},
		{"array identity", arr, arr, true},
		{"distinct arrays", arr, []any{int32(1)}, false},
	}
	for _, tt := range tests {
		if got := ValueEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestExceptionIs(t *testing.T) {
	err := error(DivideByZero())
	if !errors.Is(err, &Exception{Type: DivideByZeroExceptionType}) {
		t.Error("expected exceptions of the same type to match")
	}
	if errors.Is(err, Overflow()) {
		t.Error("expected different exception types not to match")
	}
	if got := NewException(ArgumentExceptionType, "bad %d", 1).Error(); got != "ArgumentException: bad 1" {
		t.Errorf("expected ArgumentException: bad 1, got %s", got)
	}
}

func TestGenerics(t *testing.T) {
	tv := NewParam("T")
	list := NewGeneric(Class, "List", nil, tv)
	get := NewMethod(list, "Get", false, tv, P("i", Int32Type))

	inst := list.Instantiate(StringType)
	m := get.OnType(inst)
	if m.Result != StringType || m.DeclaringType != inst || m.Root() != get {
		t.Errorf("expected List<string>.Get returning string, got %s", m)
	}

	b := map[*Type]*Type{}
	if !Unify(NullableOf(tv), NullableOf(Int32Type), b) || b[tv] != Int32Type {
		t.Error("expected T? to unify with int? binding T to int")
	}
	if Unify(tv, StringType, b) {
		t.Error("expected conflicting binding to fail")
	}
	if got := FreeParams(FuncOf([]*Type{tv, ArrayOf(tv)}, BoolType)); len(got) != 1 || got[0] != tv {
		t.Errorf("expected [T], got %v", got)
	}

	u := NewParam("U")
	id := NewMethod(nil, "Identity", true, u, P("v", u))
	id.TypeParams = []*Type{u}
	if !id.IsOpenGeneric() {
		t.Error("expected open generic method")
	}
	closed := id.Instantiate(Int64Type)
	if closed.IsOpenGeneric() || closed.Result != Int64Type || closed.Params[0].Type != Int64Type {
		t.Errorf("expected Identity<long>(long), got %s", closed)
	}
}

func TestMemberString(t *testing.T) {
	tests := []struct {
		m    *Member
		want string
	}{
		{NewMethod(StringType, "Concat", true, StringType, P("a", StringType), Ref("b", StringType)), "string.Concat(string, ref string)"},
		{NewProperty(StringType, "Length", false, Int32Type, false), "string.Length"},
		{NewConstructor(ArgumentExceptionType), "ArgumentException..ctor()"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}
