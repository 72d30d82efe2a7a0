package optimizer

import (
	"github.com/tangzhangming/treeopt/internal/analysis"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// try/catch
// ============================================================================

func (o *Optimizer) reduceTry(x *tree.Try) tree.Node {
	t := x.Type()
	handlers := o.liveHandlers(x.Handlers)
	finally, fault := x.Finally, x.Fault
	if finally != nil && o.oracle.IsPure(finally) {
		finally = nil
	}
	if fault != nil && o.oracle.IsPure(fault) {
		fault = nil
	}

	var out tree.Node
	switch {
	case len(handlers) == 0 && finally == nil && fault == nil:
		out = o.changeType(x.Body, t)
	case o.oracle.IsPure(x.Body):
		// 纯的 body 不会抛出，处理器与 fault 都不会执行
		if finally == nil {
			out = o.changeType(x.Body, t)
		} else {
			out = o.tryFinally(t, x.Body, finally)
		}
	case fault == nil && len(handlers) > 0:
		if r := o.matchThrow(t, x.Body, handlers, finally); r != nil {
			out = r
		}
	}
	if out == nil {
		nt, err := tree.NewTry(t, x.Body, finally, fault, handlers...)
		if err != nil {
			return x
		}
		out = nt
	}
	if tree.EqualNodes(out, x) {
		return x
	}
	return o.rewrote(FamilyTry, "try", x, out)
}

// liveHandlers 删除过滤器恒假的处理器，以及末尾只做 rethrow 的无过滤处理器
func (o *Optimizer) liveHandlers(hs []*tree.CatchBlock) []*tree.CatchBlock {
	var out []*tree.CatchBlock
	for _, h := range hs {
		if h.Filter != nil && o.oracle.IsFalse(h.Filter) && o.oracle.IsPure(h.Filter) {
			continue
		}
		out = append(out, h)
	}
	for len(out) > 0 {
		h := out[len(out)-1]
		th, ok := h.Body.(*tree.Throw)
		if h.Filter != nil || !ok || !th.IsRethrow() {
			break
		}
		out = out[:len(out)-1]
	}
	if len(out) == len(hs) {
		return hs
	}
	return out
}

func (o *Optimizer) tryFinally(t *types.Type, body, finally tree.Node) tree.Node {
	nt, err := tree.NewTry(t, body, finally, nil)
	if err != nil {
		return nil
	}
	return nt
}

// ============================================================================
// 编译期异常匹配
// ============================================================================

// matchThrow body 静态可知地抛出具体类型的异常时，在编译期选出处理它的处理器
//
// 依次检查处理器：类型不匹配的跳过；过滤器为常量 false 的跳过；
// 过滤器不是常量、或处理体含 rethrow 时放弃。没有任何处理器匹配时异常直接传出。
// 匹配处理器的处理体本身可能总是抛出，重新访问结果时会继续与外层 try 匹配。
func (o *Optimizer) matchThrow(t *types.Type, body tree.Node, hs []*tree.CatchBlock, finally tree.Node) tree.Node {
	prefix, vars, value, ok := o.thrownValue(body)
	if !ok {
		return nil
	}
	thrown := exceptionType(value)

	var matched *tree.CatchBlock
	for _, h := range hs {
		if !types.IsSubclassOf(thrown, h.Test) {
			continue
		}
		if h.Filter != nil {
			if o.oracle.IsFalse(h.Filter) && o.oracle.IsPure(h.Filter) {
				continue
			}
			if !o.oracle.IsTrue(h.Filter) || !o.oracle.IsPure(h.Filter) {
				return nil
			}
		}
		if analysis.ContainsRethrow(h.Body) {
			return nil
		}
		matched = h
		break
	}

	if matched == nil {
		if finally == nil {
			return o.changeType(body, t)
		}
		return o.tryFinally(t, body, finally)
	}
	// 处理体不能看到 body 块里的变量
	if firstOccurring(vars, matched.Body) != nil {
		return nil
	}
	result := o.bindHandler(t, matched, value)

	if len(prefix) > 0 || len(vars) > 0 {
		stmts := append(append([]tree.Node(nil), prefix...), result)
		nb, err := tree.NewBlock(t, vars, stmts)
		if err != nil {
			return nil
		}
		result = nb
	}
	if finally != nil {
		return o.tryFinally(t, result, finally)
	}
	return o.changeType(result, t)
}

// thrownValue 拆出 body 中抛出前的语句、块变量与被抛出的值
//
// body 必须是 throw v，或者前缀语句都不抛出、最后一条是 throw v 的块；
// v 必须是构造本身与实参都不抛出的异常构造，或异常常量。
func (o *Optimizer) thrownValue(body tree.Node) (prefix []tree.Node, vars []*tree.Parameter, value tree.Node, ok bool) {
	th, isThrow := body.(*tree.Throw)
	if b, isBlock := body.(*tree.Block); isBlock {
		last := len(b.Expressions) - 1
		for _, e := range b.Expressions[:last] {
			if !o.oracle.NeverThrows(e) {
				return nil, nil, nil, false
			}
		}
		th, isThrow = b.Expressions[last].(*tree.Throw)
		prefix, vars = b.Expressions[:last], b.Variables
	}
	if !isThrow || th.IsRethrow() {
		return nil, nil, nil, false
	}
	switch v := th.Value.(type) {
	case *tree.New:
		if v.Constructor == nil || !types.IsException(v.Type()) || !o.oracle.NeverThrowsMember(v.Constructor) {
			return nil, nil, nil, false
		}
		for _, a := range v.Arguments {
			if !o.oracle.NeverThrows(a) {
				return nil, nil, nil, false
			}
		}
	case *tree.Constant:
		if _, isExc := v.Value.(*types.Exception); !isExc {
			return nil, nil, nil, false
		}
	default:
		return nil, nil, nil, false
	}
	return prefix, vars, th.Value, true
}

func exceptionType(value tree.Node) *types.Type {
	if c, ok := value.(*tree.Constant); ok {
		return c.Value.(*types.Exception).Type
	}
	return value.Type()
}

// firstOccurring vars 中在 n 里出现的第一个变量；都不出现时返回 nil
func firstOccurring(vars []*tree.Parameter, n tree.Node) *tree.Parameter {
	counts := analysis.Occurrences(vars, n)
	for _, v := range vars {
		if counts[v] > 0 {
			return v
		}
	}
	return nil
}

// bindHandler 把被抛出的值绑定到处理器变量上，得到处理器的执行结果
func (o *Optimizer) bindHandler(t *types.Type, h *tree.CatchBlock, value tree.Node) tree.Node {
	v := h.Variable
	if v == nil || analysis.Occurrences([]*tree.Parameter{v}, h.Body)[v] == 0 {
		return tree.MakeTypedBlock(t, nil, value, h.Body)
	}
	if o.oracle.IsPure(value) && len(analysis.Unassigned([]*tree.Parameter{v}, []tree.Node{h.Body})) == 1 {
		repl := map[*tree.Parameter]tree.Node{v: o.changeType(value, v.Type())}
		return o.changeType(analysis.Substitute(h.Body, repl), t)
	}
	assign := tree.MakeBinary(tree.Assign, v, value)
	return tree.MakeTypedBlock(t, []*tree.Parameter{v}, assign, h.Body)
}
