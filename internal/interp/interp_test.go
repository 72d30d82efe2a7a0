package interp

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 测试夹具
// ============================================================================

type box struct {
	value int32
}

type intList struct {
	items []int32
}

var envType = types.NewClass("Env", nil)

// fixture 带可观察副作用的成员；ticks 可在两次运行之间重置
type fixture struct {
	ticks int32

	tick *types.Member // static int Env.Tick()
	log  *types.Member // static void Env.Log(string)

	boxType *types.Type
	boxNew  *types.Member
	value   *types.Member // Box.Value

	listType *types.Type
	listNew  *types.Member
	add      *types.Member // IntList.Add(int)
	count    *types.Member // IntList.Count
}

func newFixture() *fixture {
	fx := &fixture{
		boxType:  types.NewClass("Box", nil),
		listType: types.NewClass("IntList", nil),
	}
	fx.tick = types.NewMethod(envType, "Tick", true, types.Int32Type).
		WithImpl(func(_ any, _ []any) (any, error) {
			fx.ticks++
			return fx.ticks, nil
		})
	fx.log = types.NewMethod(envType, "Log", true, types.VoidType, types.P("msg", types.StringType)).
		WithImpl(func(_ any, _ []any) (any, error) {
			return nil, nil
		})

	fx.boxNew = types.NewConstructor(fx.boxType).
		WithImpl(func(_ any, _ []any) (any, error) {
			return &box{}, nil
		})
	fx.value = types.NewField(fx.boxType, "Value", false, types.Int32Type, true).
		WithImpl(func(obj any, _ []any) (any, error) {
			return obj.(*box).value, nil
		}).
		WithSetter(func(obj, v any, _ []any) error {
			obj.(*box).value = v.(int32)
			return nil
		})

	fx.listNew = types.NewConstructor(fx.listType).
		WithImpl(func(_ any, _ []any) (any, error) {
			return &intList{}, nil
		})
	fx.add = types.NewMethod(fx.listType, "Add", false, types.VoidType, types.P("item", types.Int32Type)).
		WithImpl(func(obj any, args []any) (any, error) {
			l := obj.(*intList)
			l.items = append(l.items, args[0].(int32))
			return nil, nil
		})
	fx.count = types.NewProperty(fx.listType, "Count", false, types.Int32Type, false).
		WithImpl(func(obj any, _ []any) (any, error) {
			return int32(len(obj.(*intList).items)), nil
		})
	return fx
}

func (fx *fixture) Tick() tree.Node { return tree.MakeCall(nil, fx.tick) }

func (fx *fixture) Log(msg string) tree.Node { return tree.MakeCall(nil, fx.log, tree.Const(msg)) }

func i32(v int32) *tree.Constant { return tree.Const(v) }

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func effectStrings(es []Effect) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.String()
	}
	return out
}

// ============================================================================
// 表达式求值
// ============================================================================

func TestEval(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	y := tree.Var("y", types.Int32Type)
	b := tree.Var("b", types.BoolType)
	s := tree.Var("s", types.StringType)
	ni := tree.Var("ni", types.NullableOf(types.Int32Type))
	globals := func() map[*tree.Parameter]any {
		return map[*tree.Parameter]any{x: int32(4), b: false, s: nil, ni: nil}
	}
	arr := tree.MakeArrayInit(types.Int32Type, i32(1), i32(2), i32(3))

	tests := []struct {
		name    string
		in      tree.Node
		want    any
		wantExc *types.Type
	}{
		{"add", tree.MakeBinary(tree.Add, i32(1), i32(2)), int32(3), nil},
		{"checked overflow", tree.MakeBinary(tree.AddChecked, i32(math.MaxInt32), i32(1)), nil, types.OverflowExceptionType},
		{"divide by zero", tree.MakeBinary(tree.Divide, x, i32(0)), nil, types.DivideByZeroExceptionType},
		{"conditional", tree.MakeCondition(b, i32(1), i32(2)), int32(2), nil},
		{"block", tree.MakeBlock([]*tree.Parameter{y},
			tree.MakeBinary(tree.Assign, y, tree.MakeBinary(tree.Add, x, i32(1))),
			tree.MakeBinary(tree.Multiply, y, i32(2))), int32(10), nil},
		{"coalesce", tree.MakeBinary(tree.Coalesce, s, tree.Const("d")), "d", nil},
		{"lifted add", tree.MakeBinary(tree.Add, ni, tree.ConstOf(int32(1), types.NullableOf(types.Int32Type))), nil, nil},
		{"widening convert", tree.MakeConvert(i32(300), types.Int64Type), int64(300), nil},
		{"type as", tree.MakeUnary(tree.TypeAs, tree.Const("a"), types.ObjectType), "a", nil},
		{"type is", tree.MakeTypeIs(tree.Const("a"), types.ObjectType), true, nil},
		{"array index", tree.MakeBinary(tree.ArrayIndex, arr, i32(1)), int32(2), nil},
		{"array out of range", tree.MakeBinary(tree.ArrayIndex, arr, i32(3)), nil, types.IndexOutOfRangeExceptionType},
		{"array length", tree.MakeUnary(tree.ArrayLength, tree.MakeArrayBounds(types.Int32Type, i32(4)), nil), int32(4), nil},
		{"not", tree.MakeUnary(tree.Not, b, nil), true, nil},
		{"short circuit", tree.MakeBinary(tree.AndAlso, b, tree.MakeBinary(tree.Equal,
			tree.MakeBinary(tree.Divide, x, i32(0)), i32(1))), false, nil},
		{"throw null", tree.MakeThrow(tree.ConstOf(nil, types.ExceptionType), types.Int32Type), nil, types.NullReferenceExceptionType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(nil).Run(tt.in, globals())
			if tt.wantExc != nil {
				var exc *types.Exception
				if !errors.As(err, &exc) || !types.Identical(exc.Type, tt.wantExc) {
					t.Errorf("expected %s, got %v", tt.wantExc, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !types.ValueEqual(v, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, v)
			}
		})
	}
}

func TestGlobalsWriteBack(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	globals := map[*tree.Parameter]any{x: int32(1)}
	in := tree.MakeBlock(nil,
		tree.MakeBinary(tree.AddAssign, x, i32(40)),
		tree.MakeUnary(tree.PostIncrementAssign, x, nil),
	)
	v, err := New(nil).Run(in, globals)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(41) {
		t.Errorf("expected 41, got %v", v)
	}
	if globals[x] != int32(42) {
		t.Errorf("expected x = 42, got %v", globals[x])
	}
}

func TestUnboundVariable(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	if _, err := New(nil).Run(x, nil); !errors.Is(err, ErrUnbound) {
		t.Errorf("expected ErrUnbound, got %v", err)
	}
}

// ============================================================================
// 控制流
// ============================================================================

func TestLoop(t *testing.T) {
	i := tree.Var("i", types.Int32Type)
	sum := tree.Var("sum", types.Int32Type)
	done := tree.NewLabelTarget("done", types.Int32Type)

	exit := must(tree.NewGoto(tree.GotoBreak, done, sum, nil))
	step := tree.MakeTypedBlock(types.VoidType, nil,
		tree.MakeBinary(tree.AddAssign, sum, i),
		tree.MakeUnary(tree.PreIncrementAssign, i, nil),
	)
	body := must(tree.NewConditional(tree.MakeBinary(tree.GreaterThan, i, i32(5)), exit, step, types.VoidType))
	in := tree.MakeBlock([]*tree.Parameter{i, sum},
		tree.MakeBinary(tree.Assign, i, i32(1)),
		must(tree.NewLoop(body, done, nil)),
	)

	v, err := New(nil).Run(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(15) {
		t.Errorf("expected 15, got %v", v)
	}
}

func TestGotoLabel(t *testing.T) {
	end := tree.NewLabelTarget("end", types.Int32Type)
	in := tree.MakeBlock(nil,
		must(tree.NewGoto(tree.GotoJump, end, i32(5), nil)),
		i32(1),
		must(tree.NewLabel(end, i32(0))),
	)
	v, err := New(nil).Run(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(5) {
		t.Errorf("expected 5, got %v", v)
	}
}

func TestStepLimit(t *testing.T) {
	in := must(tree.NewLoop(tree.Empty(), nil, nil))
	if _, err := New(nil, WithMaxSteps(100)).Run(in, nil); !errors.Is(err, ErrStepLimit) {
		t.Errorf("expected ErrStepLimit, got %v", err)
	}
}

func TestSwitch(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	in := must(tree.NewSwitch(nil, x, tree.Const("many"), nil,
		must(tree.NewSwitchCase(tree.Const("one"), i32(1))),
		must(tree.NewSwitchCase(tree.Const("few"), i32(2), i32(3))),
	))
	tests := []struct {
		x    int32
		want string
	}{
		{1, "one"},
		{3, "few"},
		{9, "many"},
	}
	for _, tt := range tests {
		v, err := New(nil).Run(in, map[*tree.Parameter]any{x: tt.x})
		if err != nil {
			t.Fatal(err)
		}
		if v != tt.want {
			t.Errorf("expected %s for %d, got %v", tt.want, tt.x, v)
		}
	}
}

// ============================================================================
// 异常
// ============================================================================

func TestTryCatchFinally(t *testing.T) {
	fx := newFixture()
	e := tree.Var("e", types.ExceptionType)
	in := must(tree.NewTry(nil,
		tree.MakeBlock(nil,
			fx.Log("try"),
			tree.MakeThrow(tree.MakeNew(types.NewConstructor(types.ArgumentExceptionType)), types.Int32Type),
		),
		fx.Log("finally"),
		nil,
		tree.MakeCatch(types.ArithmeticExceptionType, nil, i32(1)),
		tree.MakeCatch(types.ExceptionType, e, tree.MakeBlock(nil, fx.Log("catch"), i32(2))),
	))

	in2 := New(nil)
	v, err := in2.Run(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(2) {
		t.Errorf("expected 2, got %v", v)
	}
	want := "call Env.Log(try); new ArgumentException.ctor(); call Env.Log(catch); call Env.Log(finally)"
	if got := strings.Join(effectStrings(in2.Effects()), "; "); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRethrowAndFilter(t *testing.T) {
	argNew := types.NewConstructor(types.ArgumentExceptionType)
	inner := tree.MakeTryCatch(
		tree.MakeThrow(tree.MakeNew(argNew), types.Int32Type),
		tree.MakeCatch(types.ExceptionType, nil, tree.MakeRethrow(types.Int32Type)),
	)
	skipped := must(tree.NewCatch(types.ArgumentExceptionType, nil, tree.Const(false), i32(6)))
	in := tree.MakeTryCatch(inner, skipped, tree.MakeCatch(types.ArgumentExceptionType, nil, i32(7)))

	v, err := New(nil).Run(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(7) {
		t.Errorf("expected 7, got %v", v)
	}
}

func TestFault(t *testing.T) {
	fx := newFixture()
	in := must(tree.NewTry(nil, tree.MakeBinary(tree.Divide, i32(1), i32(0)), nil, fx.Log("fault")))

	in2 := New(nil)
	_, err := in2.Run(in, nil)
	var exc *types.Exception
	if !errors.As(err, &exc) || !types.Identical(exc.Type, types.DivideByZeroExceptionType) {
		t.Fatalf("expected DivideByZeroException, got %v", err)
	}
	if got := effectStrings(in2.Effects()); len(got) != 1 || got[0] != "call Env.Log(fault)" {
		t.Errorf("expected fault to run once, got %v", got)
	}
}

// ============================================================================
// 成员与闭包
// ============================================================================

func TestMembers(t *testing.T) {
	fx := newFixture()
	b := tree.Var("b", fx.boxType)
	field := tree.MakeMember(b, fx.value)
	in := tree.MakeBlock([]*tree.Parameter{b},
		tree.MakeBinary(tree.Assign, b, tree.MakeNew(fx.boxNew)),
		tree.MakeBinary(tree.Assign, field, i32(5)),
		tree.MakeUnary(tree.PostIncrementAssign, field, nil),
		field,
	)

	in2 := New(nil)
	v, err := in2.Run(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(6) {
		t.Errorf("expected 6, got %v", v)
	}
	want := "new Box.ctor(); set Box.Value(5); get Box.Value(); set Box.Value(6); get Box.Value()"
	if got := strings.Join(effectStrings(in2.Effects()), "; "); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestNullReceiver(t *testing.T) {
	fx := newFixture()
	in := tree.MakeMember(tree.ConstOf(nil, fx.boxType), fx.value)

	in2 := New(nil)
	_, err := in2.Run(in, nil)
	var exc *types.Exception
	if !errors.As(err, &exc) || !types.Identical(exc.Type, types.NullReferenceExceptionType) {
		t.Fatalf("expected NullReferenceException, got %v", err)
	}
	if n := len(in2.Effects()); n != 0 {
		t.Errorf("expected no effects, got %d", n)
	}
}

func TestInitializers(t *testing.T) {
	fx := newFixture()
	list := must(tree.NewListInit(tree.MakeNew(fx.listNew),
		must(tree.NewElementInit(fx.add, i32(1))),
		must(tree.NewElementInit(fx.add, i32(2))),
	))
	obj := must(tree.NewMemberInit(tree.MakeNew(fx.boxNew), tree.Bind(fx.value, i32(3))))

	tests := []struct {
		name string
		in   tree.Node
		want int32
	}{
		{"list", tree.MakeMember(list, fx.count), 2},
		{"member", tree.MakeMember(obj, fx.value), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(nil).Run(tt.in, nil)
			if err != nil {
				t.Fatal(err)
			}
			if v != tt.want {
				t.Errorf("expected %d, got %v", tt.want, v)
			}
		})
	}
}

func TestClosure(t *testing.T) {
	n := tree.Var("n", types.Int32Type)
	inc := tree.MakeLambda(tree.MakeBinary(tree.Assign, n, tree.MakeBinary(tree.Add, n, i32(1))))
	in := tree.MakeBlock([]*tree.Parameter{n},
		tree.MakeInvoke(inc),
		tree.MakeInvoke(inc),
		n,
	)
	in2 := New(nil)
	v, err := in2.Run(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(2) {
		t.Errorf("expected 2, got %v", v)
	}
	if in2.Stats().Invocations != 2 {
		t.Errorf("expected 2 invocations, got %d", in2.Stats().Invocations)
	}
}

func TestQuoteIsData(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	l := tree.MakeLambda(tree.MakeBinary(tree.Add, x, i32(1)), x)
	v, err := New(nil).Run(must(tree.NewQuote(l)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != l {
		t.Errorf("expected the quoted lambda, got %v", v)
	}
}

func TestSilentMembers(t *testing.T) {
	fx := newFixture()
	in2 := New(nil, WithSilent(func(m *types.Member) bool { return m == fx.log }))
	if _, err := in2.Run(tree.MakeBlock(nil, fx.Log("quiet"), fx.Tick()), nil); err != nil {
		t.Fatal(err)
	}
	if got := effectStrings(in2.Effects()); len(got) != 1 || got[0] != "call Env.Tick()" {
		t.Errorf("expected only Tick, got %v", got)
	}
	if in2.Stats().MemberCalls != 2 {
		t.Errorf("expected 2 member calls, got %d", in2.Stats().MemberCalls)
	}
}
