package optimizer

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/treeopt/internal/analysis"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
	"github.com/tangzhangming/treeopt/internal/walk"
)

// ============================================================================
// lambda 内联
// ============================================================================

// 拒绝原因
const (
	reasonArgWrites    = "argument writes a variable"
	reasonArgRethrow   = "argument rethrows"
	reasonByRef        = "by-ref parameter"
	reasonParamWritten = "parameter written in body"
	reasonNested       = "non-constant argument used in nested lambda"
	reasonBarrier      = "argument used after a barrier"
	reasonClosed       = "argument variable written before use"
	reasonCapture      = "argument would be captured"
	reasonOrder        = "argument used out of order"
	reasonRepeat       = "argument used more than once"
	reasonUnused       = "impure argument not used exactly once"
	reasonShape        = "invalid rewrite shape"
)

// binding 一个形参与它的实参
type binding struct {
	param *tree.Parameter
	arg   tree.Node
	value tree.Node // 转换成形参类型的实参
	free  map[*tree.Parameter]bool

	isConst   bool
	isPure    bool
	canRepeat bool
	before    int // 排在它前面的不纯绑定数

	uses   int
	closed bool // 实参读取的变量已被改写
}

// reducer 单次内联尝试的状态；失败时整个尝试被丢弃
type reducer struct {
	bindings map[*tree.Parameter]*binding
	order    []*binding // 不纯绑定，按实参求值顺序
	cursor   int

	barrier bool
	scope   map[*tree.Parameter]int
	depth   int

	failed string
}

// beta 把 (lambda)(args) 内联为替换了形参的函数体，不改变任何可观察行为
//
// 原调用先按顺序求值全部实参，再执行函数体。内联后实参在使用处求值，
// 因此每个不纯实参必须恰好使用一次、按原顺序使用，并且在函数体产生任何
// 副作用、异常或分支之前全部用完。纯实参可以移动，常量可以复制到任何位置。
// 任何一条不满足时返回原节点。
func (o *Optimizer) beta(inv *tree.Invocation) tree.Node {
	l, ok := inv.Expression.(*tree.Lambda)
	if !ok {
		return inv
	}
	o.stats.reduce.attempts.Inc()
	if reason := o.precheck(l, inv.Arguments); reason != "" {
		return o.rejected(inv, reason)
	}

	r := &reducer{
		bindings: make(map[*tree.Parameter]*binding, len(l.Parameters)),
		scope:    make(map[*tree.Parameter]int),
	}
	for i, p := range l.Parameters {
		arg := inv.Arguments[i]
		b := &binding{
			param:  p,
			arg:    arg,
			value:  o.changeType(arg, p.Type()),
			free:   make(map[*tree.Parameter]bool),
			isPure: o.oracle.IsPure(arg),
			before: len(r.order),
		}
		for _, v := range analysis.FreeVariables(arg) {
			b.free[v] = true
		}
		switch arg.(type) {
		case *tree.Constant, *tree.Default:
			b.isConst, b.canRepeat = true, true
		case *tree.Parameter:
			b.canRepeat = true
		}
		if !b.isPure {
			r.order = append(r.order, b)
		}
		r.bindings[p] = b
	}

	body, err := walk.Rewrite(l.Body, r.visit, r.visitLval)
	if err != nil {
		return o.rejected(inv, reasonShape)
	}
	if r.failed == "" && r.cursor != len(r.order) {
		r.failed = reasonUnused
	}
	if r.failed != "" {
		return o.rejected(inv, r.failed)
	}
	o.stats.reduce.reduced.Inc()
	return o.rewrote(FamilyBeta, "beta", inv, o.changeType(body, inv.Type()))
}

// precheck 不需要遍历函数体就能判定的拒绝条件
func (o *Optimizer) precheck(l *tree.Lambda, args []tree.Node) string {
	for _, a := range args {
		if analysis.ContainsWrite(a) {
			return reasonArgWrites
		}
		if analysis.ContainsRethrow(a) {
			return reasonArgRethrow
		}
	}
	for _, p := range l.Parameters {
		if p.ByRef {
			return reasonByRef
		}
	}
	if len(analysis.Unassigned(l.Parameters, []tree.Node{l.Body})) != len(l.Parameters) {
		return reasonParamWritten
	}
	return ""
}

func (o *Optimizer) rejected(inv *tree.Invocation, reason string) tree.Node {
	o.stats.reduce.skip(reason)
	o.log.Debug("beta rejected", zap.String("reason", reason), zap.String("node", tree.Format(inv)))
	return inv
}

// ============================================================================
// 函数体遍历
// ============================================================================

func (r *reducer) fail(n tree.Node, reason string) tree.Node {
	if r.failed == "" {
		r.failed = reason
	}
	return n
}

// barrierAt 此处之后的求值次数或顺序不再静态可知：不纯实参必须已经全部用完
func (r *reducer) barrierAt(w *walk.Walker) {
	if r.depth > 0 || w.InQuote() {
		return
	}
	if r.cursor < len(r.order) {
		r.fail(nil, reasonBarrier)
	}
	r.barrier = true
}

func (r *reducer) enter(ps []*tree.Parameter) {
	for _, p := range ps {
		r.scope[p]++
	}
}

func (r *reducer) leave(ps []*tree.Parameter) {
	for _, p := range ps {
		if r.scope[p]--; r.scope[p] == 0 {
			delete(r.scope, p)
		}
	}
}

func (r *reducer) visit(w *walk.Walker, n tree.Node) tree.Node {
	if r.failed != "" {
		return n
	}
	switch x := n.(type) {
	case *tree.Parameter:
		return r.read(w, x)

	case *tree.Block:
		r.enter(x.Variables)
		out := w.Children(n)
		r.leave(x.Variables)
		return out

	case *tree.Lambda:
		r.enter(x.Parameters)
		r.depth++
		out := w.Children(n)
		r.depth--
		r.leave(x.Parameters)
		return out

	case *tree.Loop, *tree.Label:
		r.barrierAt(w)
		return w.Children(n)

	case *tree.Try:
		r.barrierAt(w)
		return r.try(w, x)

	case *tree.Conditional:
		test := w.Visit(x.Test)
		r.barrierAt(w)
		return x.Update(test, w.Visit(x.IfTrue), w.Visit(x.IfFalse))

	case *tree.Switch:
		value := w.Visit(x.SwitchValue)
		r.barrierAt(w)
		cases := make([]*tree.SwitchCase, len(x.Cases))
		for i, c := range x.Cases {
			cases[i] = c.Update(w.List(c.TestValues), w.Visit(c.Body))
		}
		return x.Update(value, cases, w.Visit(x.Default))

	case *tree.Binary:
		if x.Op.IsShortCircuit() {
			left := w.Visit(x.Left)
			r.barrierAt(w)
			conv := x.Conversion
			if conv != nil {
				if l, ok := w.Visit(conv).(*tree.Lambda); ok {
					conv = l
				}
			}
			return x.Update(left, conv, w.Visit(x.Right))
		}
	}

	out := w.Children(n)
	if mayThrow(n) {
		r.barrierAt(w)
	}
	return out
}

// visitLval 写入变量时，读取该变量的实参不能再移动到写入之后
func (r *reducer) visitLval(w *walk.Walker, n tree.Node) tree.Node {
	if p, ok := n.(*tree.Parameter); ok && r.scope[p] == 0 {
		for _, b := range r.bindings {
			if b.free[p] {
				b.closed = true
			}
		}
	}
	return w.Children(n)
}

// try 逐个处理器访问，catch 变量只在自己的处理器中可见
func (r *reducer) try(w *walk.Walker, t *tree.Try) tree.Node {
	body := w.Visit(t.Body)
	handlers := make([]*tree.CatchBlock, len(t.Handlers))
	for i, h := range t.Handlers {
		var decl []*tree.Parameter
		if h.Variable != nil {
			decl = []*tree.Parameter{h.Variable}
		}
		r.enter(decl)
		handlers[i] = h.Update(h.Variable, w.Visit(h.Filter), w.Visit(h.Body))
		r.leave(decl)
	}
	return t.Update(body, handlers, w.Visit(t.Finally), w.Visit(t.Fault))
}

// read 读取形参：满足条件时替换为实参
func (r *reducer) read(w *walk.Walker, p *tree.Parameter) tree.Node {
	b, ok := r.bindings[p]
	if !ok || r.scope[p] > 0 {
		return p
	}
	if b.isConst {
		b.uses++
		return b.value
	}
	switch {
	case r.depth > 0 || w.InQuote():
		return r.fail(p, reasonNested)
	case r.barrier:
		return r.fail(p, reasonBarrier)
	case b.closed:
		return r.fail(p, reasonClosed)
	}
	for v := range b.free {
		if r.scope[v] > 0 {
			return r.fail(p, reasonCapture)
		}
	}
	if b.isPure {
		if r.cursor != b.before {
			return r.fail(p, reasonOrder)
		}
		if !b.canRepeat && b.uses > 0 {
			return r.fail(p, reasonRepeat)
		}
	} else {
		if b.uses > 0 {
			return r.fail(p, reasonRepeat)
		}
		if r.cursor >= len(r.order) || r.order[r.cursor] != b {
			return r.fail(p, reasonOrder)
		}
		r.cursor++
	}
	b.uses++
	return b.value
}

// mayThrow 节点自身的操作（不计子节点）可能抛出、产生副作用或转移控制
func mayThrow(n tree.Node) bool {
	switch x := n.(type) {
	case *tree.Unary:
		if x.Method != nil || x.Op.IsAssignment() {
			return true
		}
		switch x.Op {
		case tree.NegateChecked, tree.ConvertChecked, tree.Unbox, tree.ArrayLength:
			return true
		case tree.Convert:
			return !numericConversion(x.Operand.Type(), x.Type())
		}
		return false
	case *tree.Binary:
		if x.Method != nil || x.Op.IsAssignment() || x.Op.IsChecked() {
			return true
		}
		switch x.Op {
		case tree.ArrayIndex:
			return true
		case tree.Divide, tree.Modulo:
			return types.IsInteger(types.NonNullable(x.Left.Type()).Underlying())
		}
		return false
	case *tree.Call, *tree.MemberAccess, *tree.Index, *tree.Invocation, *tree.Dynamic,
		*tree.New, *tree.NewArray, *tree.ListInit, *tree.MemberInit, *tree.Throw, *tree.Goto:
		return true
	}
	return false
}
