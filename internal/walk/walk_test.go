package walk

import (
	"errors"
	"testing"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// recorder 记录每个变量在取值/赋值位置出现的次数
type recorder struct {
	reads, writes map[*tree.Parameter]int
	quoted        int
}

func newRecorder() *recorder {
	return &recorder{reads: map[*tree.Parameter]int{}, writes: map[*tree.Parameter]int{}}
}

func (r *recorder) visit(w *Walker, n tree.Node) tree.Node {
	if p, ok := n.(*tree.Parameter); ok {
		if w.InQuote() {
			r.quoted++
		}
		if w.IsLval() {
			r.writes[p]++
		} else {
			r.reads[p]++
		}
	}
	return w.Children(n)
}

func (r *recorder) walk(t *testing.T, n tree.Node) {
	t.Helper()
	out, err := Rewrite(n, r.visit, r.visit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != n {
		t.Errorf("read-only walk must return the same node")
	}
}

func TestIdentityWalk(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	n := tree.MakeBlock([]*tree.Parameter{x},
		tree.MakeBinary(tree.Assign, x, tree.Const(int32(1))),
		tree.MakeCondition(tree.Const(true), x, tree.Const(int32(2))),
	)
	out, err := Rewrite(n, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != n {
		t.Errorf("expected the identical node back")
	}
}

func TestLvalRouting(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	y := tree.Var("y", types.Int32Type)
	r := newRecorder()
	r.walk(t, tree.MakeBlock(nil,
		tree.MakeBinary(tree.Assign, x, y),
		tree.MakeBinary(tree.AddAssign, y, x),
		tree.MakeUnary(tree.PostIncrementAssign, x, types.Int32Type),
	))

	if r.writes[x] != 2 || r.reads[x] != 1 {
		t.Errorf("expected x written 2 and read 1 times, got %d/%d", r.writes[x], r.reads[x])
	}
	if r.writes[y] != 1 || r.reads[y] != 1 {
		t.Errorf("expected y written 1 and read 1 times, got %d/%d", r.writes[y], r.reads[y])
	}
}

func TestByRefArguments(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	y := tree.Var("y", types.Int32Type)
	decl := types.NewClass("Util", nil)
	m := types.NewMethod(decl, "Update", true, types.VoidType,
		types.Ref("target", types.Int32Type), types.P("value", types.Int32Type))

	r := newRecorder()
	r.walk(t, tree.MakeCall(nil, m, x, y))
	if r.writes[x] != 1 || r.reads[x] != 0 {
		t.Errorf("by-ref argument should be a write, got %d writes %d reads", r.writes[x], r.reads[x])
	}
	if r.reads[y] != 1 {
		t.Errorf("by-value argument should be a read, got %d", r.reads[y])
	}
}

func TestStructFieldWrite(t *testing.T) {
	point := types.NewStruct("Point")
	fx := types.NewField(point, "X", false, types.Int32Type, true)
	p := tree.Var("p", point)

	r := newRecorder()
	r.walk(t, tree.MakeBinary(tree.Assign, tree.MakeMember(p, fx), tree.Const(int32(1))))
	if r.writes[p] != 1 {
		t.Errorf("writing a field of a struct variable writes the variable, got %d writes", r.writes[p])
	}

	box := types.NewClass("Box", nil)
	fv := types.NewField(box, "V", false, types.Int32Type, true)
	b := tree.Var("b", box)
	r = newRecorder()
	r.walk(t, tree.MakeBinary(tree.Assign, tree.MakeMember(b, fv), tree.Const(int32(1))))
	if r.writes[b] != 0 || r.reads[b] != 1 {
		t.Errorf("writing a field of a class instance only reads the reference, got %d/%d", r.writes[b], r.reads[b])
	}
}

func TestRuntimeVariablesAndQuote(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	rv, err := tree.NewRuntimeVariables(x)
	if err != nil {
		t.Fatal(err)
	}
	r := newRecorder()
	r.walk(t, rv)
	if r.writes[x] != 1 {
		t.Errorf("runtime variables are visited as writes, got %d", r.writes[x])
	}

	q, err := tree.NewQuote(tree.MakeLambda(tree.MakeBinary(tree.Add, x, x)))
	if err != nil {
		t.Fatal(err)
	}
	r = newRecorder()
	r.walk(t, q)
	if r.quoted != 2 {
		t.Errorf("expected 2 quoted occurrences, got %d", r.quoted)
	}
}

func TestRewriteReplaces(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	n := tree.MakeBinary(tree.Add, x, tree.Const(int32(1)))
	out, err := Rewrite(n, func(w *Walker, n tree.Node) tree.Node {
		if n == x {
			return tree.Const(int32(41))
		}
		return w.Children(n)
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.Format(out); got != "(41 + 1)" {
		t.Errorf("expected (41 + 1), got %s", got)
	}
	if got := tree.Format(n); got != "(x + 1)" {
		t.Errorf("input must be untouched, got %s", got)
	}
}

func TestInitNewContext(t *testing.T) {
	bag := types.NewClass("Bag", nil)
	ctor := types.NewConstructor(bag, types.P("n", types.Int32Type))
	add := types.NewMethod(bag, "Add", false, types.VoidType, types.P("item", types.Int32Type))
	x := tree.Var("x", types.Int32Type)
	newBag := tree.MakeNew(ctor, x)
	elem, err := tree.NewElementInit(add, x)
	if err != nil {
		t.Fatal(err)
	}
	list, err := tree.NewListInit(newBag, elem)
	if err != nil {
		t.Fatal(err)
	}

	var atNew, atArg, atInit int
	_, err = Rewrite(list, func(w *Walker, n tree.Node) tree.Node {
		switch {
		case n == newBag && w.IsInitNew():
			atNew++
		case n == x && w.IsInitNew():
			atArg++
		case n == x:
			atInit++
		}
		return w.Children(n)
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atNew != 1 {
		t.Errorf("expected the constructor call to be visited in its initializer slot once, got %d", atNew)
	}
	if atArg != 0 || atInit != 2 {
		t.Errorf("expected constructor arguments outside the slot, got %d inside and %d outside", atArg, atInit)
	}
	if New(nil, nil).IsInitNew() {
		t.Error("expected a fresh walker outside any initializer")
	}
}

func TestShapeErrors(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	l := tree.MakeLambda(x, x)
	q, _ := tree.NewQuote(l)

	point := types.NewStruct("Point")
	px := types.NewField(point, "X", false, types.Int32Type, true)
	pt, err := tree.NewValue(point)
	if err != nil {
		t.Fatal(err)
	}
	mi, err := tree.NewMemberInit(pt, tree.Bind(px, tree.Const(int32(2))))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		node tree.Node
	}{
		{"quote operand", q},
		{"assignment target", tree.MakeBinary(tree.Assign, x, tree.Const(int32(1)))},
		{"initializer constructor", mi},
	}

	for _, tt := range tests {
		_, err := Rewrite(tt.node, func(w *Walker, n tree.Node) tree.Node {
			if n == l {
				return tree.Const(int32(0))
			}
			if n == pt {
				return tree.DefaultOf(point)
			}
			return w.Children(n)
		}, func(w *Walker, n tree.Node) tree.Node {
			return tree.Const(int32(0))
		})
		var se *ShapeError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected *ShapeError, got %v", tt.name, err)
			continue
		}
		if !errors.Is(err, terrors.ErrInvalidShape) || terrors.CodeOf(err) != terrors.T0300 {
			t.Errorf("%s: expected code T0300, got %v", tt.name, err)
		}
	}

	if _, err := Rewrite(nil, nil, nil); terrors.CodeOf(err) != terrors.T0001 {
		t.Errorf("expected T0001 for a nil tree, got %v", err)
	}
}
