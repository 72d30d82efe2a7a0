package optimizer

import (
	"github.com/tangzhangming/treeopt/internal/analysis"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 语句块
// ============================================================================

// reduceBlock 四个阶段依次进行，最后再扫描一次语句
//
//  1. 删除纯的非末尾语句
//  2. 删除没有出现的变量
//  3. 从未赋值的变量替换为类型默认值并移出声明
//  4. 唯一语句是块时合并作用域
func (o *Optimizer) reduceBlock(b *tree.Block) tree.Node {
	t := b.Type()
	vars := b.Variables
	exprs := o.dropPure(b.Expressions)

	if len(vars) > 0 {
		counts := analysis.Occurrences(vars, exprs...)
		vars = filterVars(vars, func(v *tree.Parameter) bool { return counts[v] > 0 })
	}

	if unassigned := analysis.Unassigned(vars, exprs); len(unassigned) > 0 {
		repl := make(map[*tree.Parameter]tree.Node, len(unassigned))
		for _, v := range unassigned {
			repl[v] = tree.DefaultOf(v.Type())
		}
		next := make([]tree.Node, len(exprs))
		for i, e := range exprs {
			next[i] = analysis.Substitute(e, repl)
		}
		exprs = next
		vars = filterVars(vars, func(v *tree.Parameter) bool { _, ok := repl[v]; return !ok })
	}

	if len(exprs) == 1 {
		if inner, ok := exprs[0].(*tree.Block); ok && types.Identical(inner.Type(), t) && disjoint(vars, inner.Variables) {
			vars = append(append([]*tree.Parameter(nil), vars...), inner.Variables...)
			exprs = inner.Expressions
		}
	}

	exprs = o.truncateAfterThrow(exprs, t)

	var out tree.Node
	if len(vars) == 0 && len(exprs) == 1 {
		out = o.changeType(exprs[0], t)
	} else {
		nb, err := tree.NewBlock(t, vars, exprs)
		if err != nil {
			return b
		}
		out = nb
	}
	if tree.EqualNodes(out, b) {
		return b
	}
	return o.rewrote(FamilyBlock, "block", b, out)
}

// dropPure 删除纯的非末尾语句；没有删除时返回原切片
func (o *Optimizer) dropPure(exprs []tree.Node) []tree.Node {
	last := len(exprs) - 1
	var out []tree.Node
	for i, e := range exprs {
		if i < last && o.oracle.IsPure(e) {
			if out == nil {
				out = append(make([]tree.Node, 0, last), exprs[:i]...)
			}
			continue
		}
		if out != nil {
			out = append(out, e)
		}
	}
	if out == nil {
		return exprs
	}
	return out
}

// truncateAfterThrow 首条语句总是抛出时，其后的语句不可达
//
// 被删除的部分含有标签时保留：标签可能是外部跳转的目标。
func (o *Optimizer) truncateAfterThrow(exprs []tree.Node, t *types.Type) []tree.Node {
	if len(exprs) < 2 || !o.oracle.AlwaysThrows(exprs[0]) || hasLabel(exprs[1:]...) {
		return exprs
	}
	first := exprs[0]
	kept := []tree.Node{first}
	if t.Kind() != types.Void && !types.IsAssignableTo(first.Type(), t) {
		if th, ok := first.(*tree.Throw); ok {
			kept[0] = th.WithType(t)
		} else {
			kept = append(kept, tree.DefaultOf(t))
		}
	}
	if len(kept) >= len(exprs) {
		return exprs
	}
	return kept
}

func filterVars(vars []*tree.Parameter, keep func(*tree.Parameter) bool) []*tree.Parameter {
	var out []*tree.Parameter
	for _, v := range vars {
		if keep(v) {
			out = append(out, v)
		}
	}
	if len(out) == len(vars) {
		return vars
	}
	return out
}

func disjoint(a, b []*tree.Parameter) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return false
			}
		}
	}
	return true
}

// ============================================================================
// 条件
// ============================================================================

// reduceConditional 条件为常量时只保留被选中的分支
func (o *Optimizer) reduceConditional(c *tree.Conditional) tree.Node {
	if r := o.throwsFirst(c); r != c {
		return r
	}
	switch {
	case o.oracle.IsTrue(c.Test) && !hasLabel(c.IfFalse):
		return o.rewrote(FamilyBlock, "constant-condition", c, o.changeType(c.IfTrue, c.Type()))
	case o.oracle.IsFalse(c.Test) && !hasLabel(c.IfTrue):
		return o.rewrote(FamilyBlock, "constant-condition", c, o.changeType(c.IfFalse, c.Type()))
	}
	return c
}
