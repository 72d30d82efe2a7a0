// Package analysis 提供基于遍历器的变量分析：未赋值变量、自由变量、出现次数与替换
package analysis

import (
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/walk"
)

// inspect 只读遍历，fn 对每个节点调用一次
func inspect(fn func(w *walk.Walker, n tree.Node), nodes ...tree.Node) {
	visit := func(w *walk.Walker, n tree.Node) tree.Node {
		fn(w, n)
		return w.Children(n)
	}
	w := walk.New(visit, visit)
	for _, n := range nodes {
		w.Visit(n)
	}
}

// ============================================================================
// 赋值分析
// ============================================================================

// Unassigned 返回 vars 中在 stmts 里从未被写入的变量，保持 vars 的顺序
//
// 写入包括赋值目标、自增自减、按引用实参与运行时变量列表；
// 引用（Quote）中的任何出现都视为写入，因为捕获后可能经由表达式树被修改。
func Unassigned(vars []*tree.Parameter, stmts []tree.Node) []*tree.Parameter {
	if len(vars) == 0 {
		return nil
	}
	written := Assigned(stmts...)
	var out []*tree.Parameter
	for _, v := range vars {
		if !written[v] {
			out = append(out, v)
		}
	}
	return out
}

// Assigned 返回 nodes 中被写入（或在引用中出现）的全部变量
func Assigned(nodes ...tree.Node) map[*tree.Parameter]bool {
	written := make(map[*tree.Parameter]bool)
	inspect(func(w *walk.Walker, n tree.Node) {
		if p, ok := n.(*tree.Parameter); ok && (w.IsLval() || w.InQuote()) {
			written[p] = true
		}
	}, nodes...)
	return written
}

// ContainsWrite 是否含有任何变量的赋值目标出现
func ContainsWrite(n tree.Node) bool {
	found := false
	inspect(func(w *walk.Walker, n tree.Node) {
		if _, ok := n.(*tree.Parameter); ok && w.IsLval() {
			found = true
		}
	}, n)
	return found
}

// ContainsRethrow 是否含有无值的 rethrow
func ContainsRethrow(n tree.Node) bool {
	found := false
	inspect(func(_ *walk.Walker, n tree.Node) {
		if t, ok := n.(*tree.Throw); ok && t.IsRethrow() {
			found = true
		}
	}, n)
	return found
}

// Occurrences 统计 vars 在 nodes 中的出现次数（读写都计入，声明不计入）
func Occurrences(vars []*tree.Parameter, nodes ...tree.Node) map[*tree.Parameter]int {
	want := make(map[*tree.Parameter]bool, len(vars))
	for _, v := range vars {
		want[v] = true
	}
	counts := make(map[*tree.Parameter]int, len(vars))
	inspect(func(_ *walk.Walker, n tree.Node) {
		if p, ok := n.(*tree.Parameter); ok && want[p] {
			counts[p]++
		}
	}, nodes...)
	return counts
}

// ============================================================================
// 作用域
// ============================================================================

// scope 当前可见的声明（按指针身份计数，允许同一变量重复声明）
type scope map[*tree.Parameter]int

func (s scope) enter(ps []*tree.Parameter) {
	for _, p := range ps {
		s[p]++
	}
}

func (s scope) leave(ps []*tree.Parameter) {
	for _, p := range ps {
		if s[p]--; s[p] == 0 {
			delete(s, p)
		}
	}
}

// Declared 节点在其子树上引入的声明；catch 变量只作用于各自的处理器，不在此列出
func Declared(n tree.Node) []*tree.Parameter {
	switch x := n.(type) {
	case *tree.Block:
		return x.Variables
	case *tree.Lambda:
		return x.Parameters
	}
	return nil
}

// scoped 返回一个维护 s 的遍历策略：进入块/lambda/catch 时登记声明，离开时撤销
func scoped(s scope, inner walk.Func) walk.Func {
	return func(w *walk.Walker, n tree.Node) tree.Node {
		if t, ok := n.(*tree.Try); ok {
			return visitTry(w, t, s)
		}
		decl := Declared(n)
		s.enter(decl)
		out := inner(w, n)
		s.leave(decl)
		return out
	}
}

// visitTry 逐个处理器访问，使 catch 变量只在其过滤器与处理体中可见
func visitTry(w *walk.Walker, t *tree.Try, s scope) tree.Node {
	body := w.Visit(t.Body)
	handlers := make([]*tree.CatchBlock, len(t.Handlers))
	for i, h := range t.Handlers {
		var decl []*tree.Parameter
		if h.Variable != nil {
			decl = []*tree.Parameter{h.Variable}
		}
		s.enter(decl)
		handlers[i] = h.Update(h.Variable, w.Visit(h.Filter), w.Visit(h.Body))
		s.leave(decl)
	}
	return t.Update(body, handlers, w.Visit(t.Finally), w.Visit(t.Fault))
}

// FreeVariables 返回 n 引用但未在 n 内声明的变量，按首次出现排序
func FreeVariables(n tree.Node) []*tree.Parameter {
	s := scope{}
	seen := make(map[*tree.Parameter]bool)
	var out []*tree.Parameter
	visit := scoped(s, func(w *walk.Walker, n tree.Node) tree.Node {
		if p, ok := n.(*tree.Parameter); ok && s[p] == 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
		return w.Children(n)
	})
	w := walk.New(visit, visit)
	w.Visit(n)
	return out
}

// Substitute 把 n 中对 repl 键变量的读取替换为对应节点
//
// 赋值目标不替换；被内层作用域重新声明的变量不替换。
func Substitute(n tree.Node, repl map[*tree.Parameter]tree.Node) tree.Node {
	if len(repl) == 0 {
		return n
	}
	s := scope{}
	read := scoped(s, func(w *walk.Walker, n tree.Node) tree.Node {
		if p, ok := n.(*tree.Parameter); ok && s[p] == 0 {
			if r, ok := repl[p]; ok {
				return r
			}
		}
		return w.Children(n)
	})
	write := scoped(s, walk.Default)
	w := walk.New(read, write)
	return w.Visit(n)
}
