package interp

import (
	"errors"
	"fmt"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 块与循环
// ============================================================================

// block 顺序求值；跳到块内顶层标签时从标签处继续
func (in *Interpreter) block(b *tree.Block, f *frame) (any, error) {
	scope := newFrame(f, b.Variables)
	var v any
	for i := 0; i < len(b.Expressions); i++ {
		var err error
		v, err = in.eval(b.Expressions[i], scope)
		if err == nil {
			continue
		}
		j, k := labelIn(b.Expressions, err)
		if k < 0 {
			return nil, err
		}
		v, i = j.value, k
	}
	return v, nil
}

func labelIn(exprs []tree.Node, err error) (*jump, int) {
	var j *jump
	if !errors.As(err, &j) {
		return nil, -1
	}
	for i, e := range exprs {
		if l, ok := e.(*tree.Label); ok && l.Target == j.target {
			return j, i
		}
	}
	return nil, -1
}

func (in *Interpreter) loop(x *tree.Loop, f *frame) (any, error) {
	for {
		_, err := in.eval(x.Body, f)
		if err == nil {
			continue
		}
		if j, ok := jumpTo(err, x.Break); ok {
			return j.value, nil
		}
		if _, ok := jumpTo(err, x.Continue); ok {
			continue
		}
		return nil, err
	}
}

// ============================================================================
// switch
// ============================================================================

// switchOn 按顺序求值各分支的测试值，第一个相等的分支胜出
func (in *Interpreter) switchOn(x *tree.Switch, f *frame) (any, error) {
	v, err := in.eval(x.SwitchValue, f)
	if err != nil {
		return nil, err
	}
	for _, c := range x.Cases {
		for _, t := range c.TestValues {
			tv, err := in.eval(t, f)
			if err != nil {
				return nil, err
			}
			hit, err := in.matches(x, v, tv, t.Type())
			if err != nil {
				return nil, err
			}
			if hit {
				return in.eval(c.Body, f)
			}
		}
	}
	return in.eval(x.Default, f)
}

func (in *Interpreter) matches(x *tree.Switch, v, tv any, tt *types.Type) (bool, error) {
	if x.Comparison != nil {
		eq, err := in.invoke("call", x.Comparison, nil, []any{v, tv})
		return eq == true, err
	}
	fn, err := in.factory.Binary(tree.Equal, arithType(x.SwitchValue.Type()), arithType(tt), types.BoolType, false)
	if err != nil {
		return types.ValueEqual(v, tv), nil
	}
	eq, err := fn(v, tv)
	return eq == true, err
}

// ============================================================================
// 异常
// ============================================================================

func (in *Interpreter) throw(x *tree.Throw, f *frame) (any, error) {
	in.stats.Throws++
	if x.IsRethrow() {
		if len(in.caught) == 0 {
			return nil, fmt.Errorf("interp: rethrow outside a catch block")
		}
		return nil, in.caught[len(in.caught)-1]
	}
	v, err := in.eval(x.Value, f)
	if err != nil {
		return nil, err
	}
	switch e := v.(type) {
	case nil:
		return nil, types.NullReference()
	case *types.Exception:
		return nil, e
	}
	return nil, &types.Exception{Type: x.Value.Type(), Message: fmt.Sprint(v)}
}

// try 处理器按顺序匹配；过滤器抛出异常视为不匹配。
// fault 只在异常离开 try 时执行，finally 总是执行，其中的异常取代原结果。
func (in *Interpreter) try(x *tree.Try, f *frame) (any, error) {
	v, err := in.eval(x.Body, f)

	var exc *types.Exception
	if errors.As(err, &exc) {
		for _, h := range x.Handlers {
			if !types.IsSubclassOf(exc.Type, h.Test) {
				continue
			}
			scope := newFrame(f, nil)
			if h.Variable != nil {
				scope.declare(h.Variable, exc)
			}
			if h.Filter != nil {
				ok, ferr := in.eval(h.Filter, scope)
				var fexc *types.Exception
				if ferr != nil && !errors.As(ferr, &fexc) {
					return nil, ferr
				}
				if ferr != nil || ok != true {
					continue
				}
			}
			in.caught = append(in.caught, exc)
			v, err = in.eval(h.Body, scope)
			in.caught = in.caught[:len(in.caught)-1]
			break
		}
	}

	if x.Fault != nil && errors.As(err, &exc) {
		if _, ferr := in.eval(x.Fault, f); ferr != nil {
			return nil, ferr
		}
	}
	if x.Finally != nil {
		if _, ferr := in.eval(x.Finally, f); ferr != nil {
			return nil, ferr
		}
	}
	return v, err
}
