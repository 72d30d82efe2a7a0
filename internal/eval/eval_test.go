package eval

import (
	"errors"
	"math"
	"sync"
	"testing"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

var (
	i8   = types.Int8Type
	i32  = types.Int32Type
	i64  = types.Int64Type
	u8   = types.Uint8Type
	u32  = types.Uint32Type
	f64  = types.Float64Type
	b    = types.BoolType
	ni32 = types.NullableOf(types.Int32Type)
	nb   = types.NullableOf(types.BoolType)
)

func mustBinary(t *testing.T, f *DefaultFactory, op tree.BinaryOp, l, r, res *types.Type, liftToNull bool) Func {
	t.Helper()
	fn, err := f.Binary(op, l, r, res, liftToNull)
	if err != nil {
		t.Fatalf("Binary(%s): %v", op, err)
	}
	return fn
}

func TestBinaryArithmetic(t *testing.T) {
	f := NewFactory()
	tests := []struct {
		name     string
		op       tree.BinaryOp
		typ      *types.Type
		a, b     any
		expected any
		exc      *types.Type
	}{
		{"add", tree.Add, i32, int32(1), int32(0), int32(1), nil},
		{"wrap", tree.Add, i32, int32(math.MaxInt32), int32(1), int32(math.MinInt32), nil},
		{"checked overflow", tree.AddChecked, i32, int32(math.MaxInt32), int32(1), nil, types.OverflowExceptionType},
		{"checked long overflow", tree.MultiplyChecked, i64, int64(math.MaxInt64), int64(2), nil, types.OverflowExceptionType},
		{"checked byte", tree.AddChecked, u8, uint8(200), uint8(100), nil, types.OverflowExceptionType},
		{"unsigned wrap", tree.Subtract, u32, uint32(0), uint32(1), uint32(math.MaxUint32), nil},
		{"divide by zero", tree.Divide, i32, int32(1), int32(0), nil, types.DivideByZeroExceptionType},
		{"min div -1", tree.Divide, i32, int32(math.MinInt32), int32(-1), nil, types.OverflowExceptionType},
		{"sbyte min div -1 wraps", tree.Divide, i8, int8(math.MinInt8), int8(-1), int8(math.MinInt8), nil},
		{"modulo", tree.Modulo, i32, int32(-7), int32(3), int32(-1), nil},
		{"float divide by zero", tree.Divide, f64, 1.0, 0.0, math.Inf(1), nil},
		{"xor", tree.ExclusiveOr, i32, int32(6), int32(3), int32(5), nil},
		{"bool and", tree.And, b, true, false, false, nil},
		{"less", tree.LessThan, i32, int32(1), int32(2), true, nil},
		{"string equal", tree.Equal, types.StringType, "a", "a", true, nil},
	}

	for _, tt := range tests {
		res := tt.typ
		if tt.op.IsComparison() {
			res = b
		}
		fn := mustBinary(t, f, tt.op, tt.typ, tt.typ, res, false)
		v, err := fn(tt.a, tt.b)
		if tt.exc != nil {
			var exc *types.Exception
			if !errors.As(err, &exc) || exc.Type != tt.exc {
				t.Errorf("%s: expected %s, got %v", tt.name, tt.exc, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if v != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, v)
		}
	}
}

func TestShiftMasking(t *testing.T) {
	f := NewFactory()
	fn := mustBinary(t, f, tree.LeftShift, i32, i32, i32, false)
	v, _ := fn(int32(1), int32(33))
	if v != int32(2) {
		t.Errorf("expected 1 << 33 == 2 for int, got %v", v)
	}
	fn = mustBinary(t, f, tree.LeftShift, i64, i32, i64, false)
	v, _ = fn(int64(1), int32(33))
	if v != int64(1)<<33 {
		t.Errorf("expected 1L << 33, got %v", v)
	}
	fn = mustBinary(t, f, tree.RightShift, i32, i32, i32, false)
	v, _ = fn(int32(-8), int32(1))
	if v != int32(-4) {
		t.Errorf("expected arithmetic shift -8 >> 1 == -4, got %v", v)
	}
}

func TestLifted(t *testing.T) {
	f := NewFactory()

	add := mustBinary(t, f, tree.Add, ni32, ni32, ni32, false)
	if v, err := add(nil, int32(1)); v != nil || err != nil {
		t.Errorf("expected null + 1 == null, got %v, %v", v, err)
	}
	div := mustBinary(t, f, tree.Divide, ni32, ni32, ni32, false)
	if v, err := div(nil, int32(0)); v != nil || err != nil {
		t.Errorf("lifted division must not evaluate the operator on null, got %v, %v", v, err)
	}

	eq := mustBinary(t, f, tree.Equal, ni32, ni32, b, false)
	if v, _ := eq(nil, nil); v != true {
		t.Errorf("expected null == null, got %v", v)
	}
	lt := mustBinary(t, f, tree.LessThan, ni32, ni32, b, false)
	if v, _ := lt(nil, int32(1)); v != false {
		t.Errorf("expected null < 1 == false, got %v", v)
	}
	ltn := mustBinary(t, f, tree.LessThan, ni32, ni32, nb, true)
	if v, _ := ltn(nil, int32(1)); v != nil {
		t.Errorf("expected lifted-to-null comparison to be null, got %v", v)
	}

	and := mustBinary(t, f, tree.And, nb, nb, nb, false)
	if v, _ := and(nil, false); v != false {
		t.Errorf("expected null & false == false, got %v", v)
	}
	if v, _ := and(nil, true); v != nil {
		t.Errorf("expected null & true == null, got %v", v)
	}
	or := mustBinary(t, f, tree.Or, nb, nb, nb, false)
	if v, _ := or(true, nil); v != true {
		t.Errorf("expected true | null == true, got %v", v)
	}
}

func TestUnary(t *testing.T) {
	f := NewFactory()
	tests := []struct {
		op       tree.UnaryOp
		typ      *types.Type
		in       any
		expected any
		exc      *types.Type
	}{
		{tree.Negate, i32, int32(math.MinInt32), int32(math.MinInt32), nil},
		{tree.NegateChecked, i32, int32(math.MinInt32), nil, types.OverflowExceptionType},
		{tree.Not, b, true, false, nil},
		{tree.Not, i32, int32(0), int32(-1), nil},
		{tree.OnesComplement, u8, uint8(0x0f), uint8(0xf0), nil},
		{tree.Negate, ni32, nil, nil, nil},
	}
	for _, tt := range tests {
		fn, err := f.Unary(tt.op, tt.typ, tt.typ)
		if err != nil {
			t.Fatalf("Unary(%s): %v", tt.op, err)
		}
		v, err := fn(tt.in)
		if tt.exc != nil {
			var exc *types.Exception
			if !errors.As(err, &exc) || exc.Type != tt.exc {
				t.Errorf("%s: expected %s, got %v", tt.op, tt.exc, err)
			}
			continue
		}
		if err != nil || v != tt.expected {
			t.Errorf("%s(%v): expected %v, got %v (%v)", tt.op, tt.in, tt.expected, v, err)
		}
	}
}

func TestConvert(t *testing.T) {
	f := NewFactory()
	color := types.NewEnum("Color", types.Int32Type)

	tests := []struct {
		name     string
		op       tree.UnaryOp
		from, to *types.Type
		in       any
		expected any
		exc      *types.Type
		notFold  bool
	}{
		{"widen", tree.Convert, i32, i64, int32(-1), int64(-1), nil, false},
		{"truncate", tree.Convert, i32, u8, int32(300), uint8(44), nil, false},
		{"checked narrow", tree.ConvertChecked, i32, u8, int32(300), nil, types.OverflowExceptionType, false},
		{"double to int", tree.Convert, f64, i32, 3.9, int32(3), nil, false},
		{"double out of range", tree.Convert, f64, i32, 1e20, nil, nil, true},
		{"checked double out of range", tree.ConvertChecked, f64, i32, 1e20, nil, types.OverflowExceptionType, false},
		{"nullable null to value", tree.Convert, ni32, i64, nil, nil, types.InvalidOperationExceptionType, false},
		{"nullable null to nullable", tree.Convert, ni32, types.NullableOf(i64), nil, nil, nil, false},
		{"wrap nullable", tree.Convert, i32, ni32, int32(5), int32(5), nil, false},
		{"unbox null", tree.Convert, types.ObjectType, i32, nil, nil, types.NullReferenceExceptionType, false},
		{"unbox mismatch", tree.Convert, types.ObjectType, i32, int64(1), nil, types.InvalidCastExceptionType, false},
		{"box", tree.Convert, i32, types.ObjectType, int32(1), int32(1), nil, false},
		{"to enum", tree.Convert, i32, color, int32(2), int32(2), nil, false},
		{"enum to long", tree.Convert, color, i64, int32(2), int64(2), nil, false},
	}

	for _, tt := range tests {
		fn, err := f.Unary(tt.op, tt.from, tt.to)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		v, err := fn(tt.in)
		switch {
		case tt.notFold:
			if !errors.Is(err, ErrNotFoldable) {
				t.Errorf("%s: expected ErrNotFoldable, got %v, %v", tt.name, v, err)
			}
		case tt.exc != nil:
			var exc *types.Exception
			if !errors.As(err, &exc) || exc.Type != tt.exc {
				t.Errorf("%s: expected %s, got %v", tt.name, tt.exc, err)
			}
		default:
			if err != nil || v != tt.expected {
				t.Errorf("%s: expected %v, got %v (%v)", tt.name, tt.expected, v, err)
			}
		}
	}
}

func TestCache(t *testing.T) {
	f := NewFactory()
	color := types.NewEnum("Color", types.Int32Type)

	mustBinary(t, f, tree.Add, i32, i32, i32, false)
	mustBinary(t, f, tree.Add, i32, i32, i32, false)
	mustBinary(t, f, tree.Add, ni32, ni32, ni32, false)
	if _, err := f.Unary(tree.Convert, color, i64); err != nil {
		t.Fatal(err)
	}

	s := f.Stats()
	if s.Hits != 1 || s.Misses != 2 {
		t.Errorf("expected 1 hit and 2 misses, got %+v", s)
	}
	if s.Uncached != 1 {
		t.Errorf("expected the enum conversion to bypass the cache, got %+v", s)
	}
	if f.CacheSize() != 2 {
		t.Errorf("expected 2 cached operators, got %d", f.CacheSize())
	}
}

func TestCacheConcurrent(t *testing.T) {
	f := NewFactory()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				fn, err := f.Binary(tree.Multiply, i64, i64, i64, false)
				if err != nil {
					t.Error(err)
					return
				}
				if v, _ := fn(int64(6), int64(7)); v != int64(42) {
					t.Errorf("expected 42, got %v", v)
					return
				}
			}
		}()
	}
	wg.Wait()
	if f.CacheSize() != 1 {
		t.Errorf("expected a single cache entry, got %d", f.CacheSize())
	}
}

func TestMember(t *testing.T) {
	f := NewFactory()
	str := types.StringType
	length := types.NewProperty(str, "Length", false, i32, false).
		WithImpl(func(obj any, _ []any) (any, error) { return int32(len(obj.(string))), nil })

	fn, err := f.Member(length)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := fn("abc"); v != int32(3) || err != nil {
		t.Errorf("expected 3, got %v (%v)", v, err)
	}
	_, err = fn(nil)
	var exc *types.Exception
	if !errors.As(err, &exc) || exc.Type != types.NullReferenceExceptionType {
		t.Errorf("expected NullReferenceException, got %v", err)
	}

	if _, err := f.Member(nil); terrors.CodeOf(err) != terrors.T0001 {
		t.Errorf("expected T0001, got %v", err)
	}
	static := types.NewProperty(str, "Item", true, i32, false, types.P("i", i32))
	if _, err := f.Member(static); !errors.Is(err, terrors.ErrMemberShape) {
		t.Errorf("expected ErrMemberShape, got %v", err)
	}
	noImpl := types.NewMethod(str, "Trim", false, str)
	if _, err := f.Member(noImpl); !errors.Is(err, terrors.ErrNoImpl) {
		t.Errorf("expected ErrNoImpl, got %v", err)
	}
}
