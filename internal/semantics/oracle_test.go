package semantics

import (
	"math"
	"testing"

	"github.com/tangzhangming/treeopt/internal/purity"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

func TestDefaultPurity(t *testing.T) {
	o := Default()
	x := tree.Var("x", types.Int32Type)

	tests := []struct {
		name string
		node tree.Node
		pure bool
	}{
		{"constant", tree.Const(int32(1)), true},
		{"default", tree.DefaultOf(types.Int32Type), true},
		{"parameter", x, true},
		{"lambda", tree.MakeLambda(x, x), true},
		{"binary", tree.MakeBinary(tree.Add, x, x), false},
		{"throw", tree.MakeThrow(tree.Const(types.Overflow()), nil), false},
	}

	for _, tt := range tests {
		if got := o.IsPure(tt.node); got != tt.pure {
			t.Errorf("%s: expected IsPure %v, got %v", tt.name, tt.pure, got)
		}
		if got := o.NeverThrows(tt.node); got != tt.pure {
			t.Errorf("%s: expected NeverThrows %v, got %v", tt.name, tt.pure, got)
		}
	}
	if !o.AlwaysThrows(tree.MakeRethrow(nil)) {
		t.Error("rethrow should always throw")
	}
}

func TestDefaultNeverThrowsMember(t *testing.T) {
	o := Default()
	custom := types.NewClass("CustomException", types.ExceptionType)

	tests := []struct {
		name string
		m    *types.Member
		want bool
	}{
		{"framework exception", types.NewConstructor(types.ArgumentExceptionType), true},
		{"base exception", types.NewConstructor(types.ExceptionType), true},
		{"with message", types.NewConstructor(types.ArgumentExceptionType, types.P("message", types.StringType)), false},
		{"host exception", types.NewConstructor(custom), false},
		{"method", types.NewMethod(types.ArgumentExceptionType, "ToString", false, types.StringType), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := o.NeverThrowsMember(tt.m); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
		if o.IsPureMember(tt.m) {
			t.Errorf("%s: expected no member to be pure", tt.name)
		}
	}
}

func TestValueTables(t *testing.T) {
	o := Default()

	tests := []struct {
		name  string
		node  tree.Node
		check func(tree.Node) bool
		want  bool
	}{
		{"int zero", tree.Const(int32(0)), o.IsZero, true},
		{"default long is zero", tree.DefaultOf(types.Int64Type), o.IsZero, true},
		{"double zero is not tabled", tree.Const(0.0), o.IsZero, false},
		{"byte one", tree.Const(uint8(1)), o.IsOne, true},
		{"sbyte -1 all ones", tree.Const(int8(-1)), o.AllBitsOne, true},
		{"uint max all ones", tree.Const(uint32(math.MaxUint32)), o.AllBitsOne, true},
		{"true aliases all ones", tree.Const(true), o.AllBitsOne, true},
		{"false aliases all zeros", tree.Const(false), o.AllBitsZero, true},
		{"false is not zero", tree.Const(false), o.IsZero, false},
		{"int min", tree.Const(int32(math.MinInt32)), o.IsMinValue, true},
		{"ushort max", tree.Const(uint16(math.MaxUint16)), o.IsMaxValue, true},
		{"nullable constant", tree.ConstOf(int32(0), types.NullableOf(types.Int32Type)), o.IsZero, true},
		{"null", tree.ConstOf(nil, types.NullableOf(types.Int32Type)), o.IsZero, false},
	}

	for _, tt := range tests {
		if got := tt.check(tt.node); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestNullness(t *testing.T) {
	o := Default()
	s := tree.Var("s", types.StringType)

	if !o.IsAlwaysNull(tree.DefaultOf(types.StringType)) {
		t.Error("default(string) should be always null")
	}
	if o.IsAlwaysNull(tree.DefaultOf(types.Int32Type)) {
		t.Error("default(int) is never null")
	}
	if !o.IsNeverNull(tree.Const("a")) {
		t.Error("non-null constant should be never null")
	}
	if o.IsNeverNull(s) {
		t.Error("a string variable may be null")
	}
	if !o.IsNeverNull(tree.Var("i", types.Int32Type)) {
		t.Error("a non-nullable value type is never null")
	}
}

func TestImmutable(t *testing.T) {
	o := Default()
	tests := []struct {
		typ  *types.Type
		want bool
	}{
		{types.Int32Type, true},
		{types.StringType, true},
		{types.VoidType, true},
		{types.NullableOf(types.Float64Type), true},
		{types.ArrayOf(types.Int32Type), false},
		{types.ObjectType, false},
		{types.NewClass("Box", nil), false},
	}
	for _, tt := range tests {
		if got := o.IsImmutable(tt.typ); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.typ, tt.want, got)
		}
	}
}

func TestTwoTierTrust(t *testing.T) {
	lib := purity.Builtins()
	cat, err := lib.Catalog("Math.*", "Operators.Identity", "Nullable.HasValue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	max := lib.Member("Math.Max")
	call := tree.MakeCall(nil, max, tree.Const(int32(1)), tree.Const(int32(2)))

	if Default().IsPureMember(max) {
		t.Error("default oracle must not trust any member")
	}
	if Default().IsPure(call) {
		t.Error("default oracle must not treat calls as pure")
	}

	o := WithCatalog(nil, cat)
	if !o.IsPureMember(max) {
		t.Error("catalog oracle should trust Math.Max")
	}
	if !o.IsPure(call) {
		t.Error("call of a pure member with pure arguments should be pure")
	}
	impure := tree.MakeCall(nil, max, tree.MakeCall(nil, lib.Member("Counter.Next")), tree.Const(int32(2)))
	if o.IsPure(impure) {
		t.Error("impure argument should make the call impure")
	}

	id := lib.Specialize("Operators.Identity", types.StringType)
	if !o.IsIdentityFunction(id) {
		t.Error("instantiated Identity<string> should match the open generic entry")
	}
	hasValue := lib.Specialize("Nullable.HasValue", types.Int64Type)
	if !o.IsPureMember(hasValue) {
		t.Error("long?.HasValue should match Nullable<T>.HasValue")
	}
	n := tree.Var("n", types.NullableOf(types.Int64Type))
	if !o.IsPure(tree.MakeMember(n, hasValue)) {
		t.Error("HasValue on a nullable receiver cannot throw")
	}
}
