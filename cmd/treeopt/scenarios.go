package main

import (
	"github.com/tangzhangming/treeopt/internal/purity"
	"github.com/tangzhangming/treeopt/internal/semantics"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 内置场景
// ============================================================================

// example 一棵待优化的树及其运行环境
type example struct {
	input tree.Node
	env   map[*tree.Parameter]any

	// nonNull 宿主声明永不为 null 的变量
	nonNull []*tree.Parameter
}

// scenario 一组示例
type scenario struct {
	name     string
	title    string
	examples func(h *host) []example
}

// host 演示用的宿主环境：内置成员库加一个可重置的有副作用计数器
type host struct {
	lib   *purity.Library
	ticks int32
	next  *types.Member
}

var hostType = types.NewClass("Host", nil)

func newHost() *host {
	h := &host{lib: purity.Builtins()}
	h.next = h.lib.Register(types.NewMethod(hostType, "Next", true, types.Int32Type).
		WithImpl(func(_ any, _ []any) (any, error) {
			h.ticks++
			return h.ticks, nil
		}), 0)
	return h
}

func i32(v int32) *tree.Constant { return tree.Const(v) }

var scenarios = []scenario{
	{
		name:  "A",
		title: "additive identity",
		examples: func(*host) []example {
			return []example{{input: tree.MakeBinary(tree.Add, i32(1), i32(0))}}
		},
	},
	{
		name:  "B",
		title: "coalesce of a never-null operand",
		examples: func(*host) []example {
			x := tree.Var("x", types.StringType)
			y := tree.Var("y", types.StringType)
			return []example{{
				input:   tree.MakeBinary(tree.Coalesce, x, y),
				env:     map[*tree.Parameter]any{x: "left", y: "right"},
				nonNull: []*tree.Parameter{x},
			}}
		},
	},
	{
		name:  "C",
		title: "unused and unassigned block variables",
		examples: func(*host) []example {
			x := tree.Var("x", types.Int32Type)
			y := tree.Var("y", types.Int32Type)
			return []example{{input: tree.MakeBlock([]*tree.Parameter{x, y},
				tree.MakeBinary(tree.Assign, x, i32(1)),
				tree.MakeBinary(tree.Add, x, y),
			)}}
		},
	},
	{
		name:  "D",
		title: "throw matched against a catch handler",
		examples: func(h *host) []example {
			e := tree.Var("e", types.ArgumentExceptionType)
			return []example{{input: tree.MakeTryCatch(
				tree.MakeThrow(tree.MakeNew(h.lib.Member("ArgumentException.ctor")), types.Int32Type),
				tree.MakeCatch(types.ArgumentExceptionType, e, i32(42)),
			)}}
		},
	},
	{
		name:  "E",
		title: "beta reduction with impure and constant arguments",
		examples: func(h *host) []example {
			x := tree.Var("x", types.Int32Type)
			double := tree.MakeLambda(tree.MakeBinary(tree.Add, x, x), x)
			return []example{
				{input: tree.MakeInvoke(double, tree.MakeCall(nil, h.next))},
				{input: tree.MakeInvoke(double, i32(5))},
			}
		},
	},
	{
		name:  "F",
		title: "De Morgan with a negated equality",
		examples: func(*host) []example {
			a := tree.Var("a", types.Int32Type)
			b := tree.Var("b", types.Int32Type)
			c := tree.Var("c", types.BoolType)
			return []example{{
				input: tree.MakeUnary(tree.Not,
					tree.MakeBinary(tree.And,
						tree.MakeUnary(tree.Not, tree.MakeBinary(tree.Equal, a, b), nil),
						tree.MakeUnary(tree.Not, c, nil),
					), nil),
				env: map[*tree.Parameter]any{a: int32(1), b: int32(2), c: false},
			}}
		},
	},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

// nonNullOracle 在基础 Oracle 之上声明若干变量永不为 null
type nonNullOracle struct {
	semantics.Oracle
	vars map[*tree.Parameter]bool
}

func withNonNull(base semantics.Oracle, params []*tree.Parameter) semantics.Oracle {
	if len(params) == 0 {
		return base
	}
	o := nonNullOracle{Oracle: base, vars: make(map[*tree.Parameter]bool, len(params))}
	for _, p := range params {
		o.vars[p] = true
	}
	return o
}

func (o nonNullOracle) IsNeverNull(n tree.Node) bool {
	if p, ok := n.(*tree.Parameter); ok && o.vars[p] {
		return true
	}
	return o.Oracle.IsNeverNull(n)
}
