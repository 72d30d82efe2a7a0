package optimizer

import (
	"testing"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

func runBeta(t *testing.T, o *Optimizer, n tree.Node) tree.Node {
	t.Helper()
	out, err := NewBetaPass(o).Run(n)
	if err != nil {
		t.Fatalf("beta pass: %v", err)
	}
	return out
}

func TestBetaReduction(t *testing.T) {
	a := tree.Var("a", types.Int32Type)
	b := tree.Var("b", types.Int32Type)
	x := tree.Var("x", types.Int32Type)
	y := tree.Var("y", types.Int32Type)
	cond := tree.Var("cond", types.BoolType)
	next := func() tree.Node { return tree.MakeCall(nil, nextMember) }

	tests := []struct {
		name string
		in   tree.Node
		want string // 空串表示拒绝
	}{
		{
			"in order",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeBinary(tree.Add, a, b), a, b), next(), next()),
			"(Counter.Next() + Counter.Next())",
		},
		{
			"out of order",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeBinary(tree.Add, b, a), a, b), next(), next()),
			"",
		},
		{
			"constant repeated",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeBinary(tree.Multiply, a, a), a), i32(3)),
			"(3 * 3)",
		},
		{
			"variable repeated",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeBinary(tree.Multiply, a, a), a), y),
			"(y * y)",
		},
		{
			"unused impure argument",
			tree.MakeInvoke(tree.MakeLambda(i32(1), a), next()),
			"",
		},
		{
			"unused pure argument",
			tree.MakeInvoke(tree.MakeLambda(i32(1), a), y),
			"1",
		},
		{
			"branch before use",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeCondition(cond, a, i32(0)), a), next()),
			"",
		},
		{
			"use before branch",
			tree.MakeInvoke(tree.MakeLambda(
				tree.MakeBinary(tree.Add, a, tree.MakeCondition(cond, i32(1), i32(0))), a), next()),
			"(Counter.Next() + (cond ? 1 : 0))",
		},
		{
			"throwing operation before use",
			tree.MakeInvoke(tree.MakeLambda(
				tree.MakeBinary(tree.Add, tree.MakeBinary(tree.Divide, y, x), a), a), next()),
			"",
		},
		{
			"constant in nested lambda",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeLambda(a), a), i32(5)),
			"() => 5",
		},
		{
			"impure in nested lambda",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeLambda(a), a), next()),
			"",
		},
		{
			"captured by inner declaration",
			tree.MakeInvoke(tree.MakeLambda(
				tree.MakeBlock([]*tree.Parameter{y}, tree.MakeBinary(tree.Add, y, a)), a), y),
			"",
		},
		{
			"argument variable written first",
			tree.MakeInvoke(tree.MakeLambda(
				tree.MakeBlock(nil, tree.MakeBinary(tree.Assign, y, i32(1)), a), a), y),
			"",
		},
		{
			"parameter written in body",
			tree.MakeInvoke(tree.MakeLambda(tree.MakeBinary(tree.Assign, a, i32(1)), a), i32(2)),
			"",
		},
		{
			"argument writes",
			tree.MakeInvoke(tree.MakeLambda(a, a), tree.MakeBinary(tree.Assign, y, i32(1))),
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(nil, nil)
			out := runBeta(t, o, tt.in)
			if tt.want == "" {
				if out != tt.in {
					t.Errorf("expected rejection, got %s", tree.Format(out))
				}
				if o.Stats().Reduce.Reduced != 0 {
					t.Errorf("expected no reductions, got %d", o.Stats().Reduce.Reduced)
				}
				return
			}
			if got := tree.Format(out); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if !types.Identical(out.Type(), tt.in.Type()) {
				t.Errorf("expected type %s, got %s", tt.in.Type(), out.Type())
			}
		})
	}
}

func TestBetaRejectionReasons(t *testing.T) {
	a := tree.Var("a", types.Int32Type)
	y := tree.Var("y", types.Int32Type)
	o := New(nil, nil)

	runBeta(t, o, tree.MakeInvoke(tree.MakeLambda(tree.MakeBinary(tree.Add, a, a), a), tree.MakeCall(nil, nextMember)))
	runBeta(t, o, tree.MakeInvoke(tree.MakeLambda(
		tree.MakeBlock([]*tree.Parameter{y}, tree.MakeBinary(tree.Add, y, a)), a), y))

	snap := o.Stats().Reduce
	if snap.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", snap.Attempts)
	}
	if snap.Skipped[reasonRepeat] != 1 || snap.Skipped[reasonCapture] != 1 {
		t.Errorf("expected repeat and capture rejections, got %v", snap.Skipped)
	}
	if got := snap.Reasons(); len(got) != 2 {
		t.Errorf("expected 2 reasons, got %v", got)
	}
}

func TestPassManager(t *testing.T) {
	x := tree.Var("x", types.Int32Type)
	in := tree.MakeInvoke(tree.MakeLambda(tree.MakeBinary(tree.Add, x, i32(1)), x), i32(2))

	o := New(nil, nil, WithBetaReduction(false))
	pm := CreateStandardPipeline(o)
	out, err := pm.Run(in)
	if err != nil {
		t.Fatal(err)
	}
	if got := tree.Format(out); got != "3" {
		t.Errorf("expected 3, got %s", got)
	}

	stats := pm.Stats()
	if stats.PassesRun != 3 {
		t.Errorf("expected 3 passes run, got %d", stats.PassesRun)
	}
	if stats.PerPassChanges["beta"] != 1 || stats.PerPassChanges["rules"] != 1 {
		t.Errorf("expected one beta and one rules change, got %v", stats.PerPassChanges)
	}

	out, err = pm.RunUntilFixed(in, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got := tree.Format(out); got != "3" {
		t.Errorf("expected 3, got %s", got)
	}
}

func TestPassManagerError(t *testing.T) {
	pm := CreateStandardPipeline(New(nil, nil))
	if _, err := pm.Run(nil); err == nil {
		t.Errorf("expected error for nil tree")
	}
}
