package interp

import (
	"errors"
	"fmt"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 求值分派
// ============================================================================

func (in *Interpreter) eval(n tree.Node, f *frame) (any, error) {
	if n == nil {
		return nil, nil
	}
	in.steps++
	in.stats.NodesEvaluated++
	if in.maxSteps > 0 && in.steps > in.maxSteps {
		return nil, ErrStepLimit
	}

	switch x := n.(type) {
	case *tree.Constant:
		return x.Value, nil

	case *tree.Default:
		return types.Zero(x.Type()), nil

	case *tree.Parameter:
		c, err := f.lookup(x)
		if err != nil {
			return nil, err
		}
		return c.value, nil

	case *tree.RuntimeVariables:
		vars := &Variables{cells: make([]*cell, len(x.Variables))}
		for i, p := range x.Variables {
			c, err := f.lookup(p)
			if err != nil {
				return nil, err
			}
			vars.cells[i] = c
		}
		return vars, nil

	case *tree.Unary:
		return in.unary(x, f)

	case *tree.Binary:
		return in.binary(x, f)

	case *tree.TypeBinary:
		return in.typeTest(x, f)

	case *tree.Block:
		return in.block(x, f)

	case *tree.Conditional:
		test, err := in.eval(x.Test, f)
		if err != nil {
			return nil, err
		}
		if test == true {
			return in.eval(x.IfTrue, f)
		}
		return in.eval(x.IfFalse, f)

	case *tree.Loop:
		return in.loop(x, f)

	case *tree.Label:
		v, err := in.eval(x.Default, f)
		if j, ok := jumpTo(err, x.Target); ok {
			return j.value, nil
		}
		return v, err

	case *tree.Goto:
		v, err := in.eval(x.Value, f)
		if err != nil {
			return nil, err
		}
		return nil, &jump{target: x.Target, value: v}

	case *tree.Switch:
		return in.switchOn(x, f)

	case *tree.Try:
		return in.try(x, f)

	case *tree.Throw:
		return in.throw(x, f)

	case *tree.Lambda:
		return &Closure{Lambda: x, env: f}, nil

	case *tree.Quote:
		// 引用的 lambda 以树的形式作为值，不闭包当前环境
		return x.Operand, nil

	case *tree.Invocation:
		return in.invocation(x, f)

	case *tree.Call:
		return in.call(x, f)

	case *tree.MemberAccess:
		obj, err := in.eval(x.Object, f)
		if err != nil {
			return nil, err
		}
		return in.get(x.Member, obj, nil)

	case *tree.Index:
		obj, args, err := in.operands(x.Object, x.Arguments, f)
		if err != nil {
			return nil, err
		}
		if x.Indexer == nil {
			return arrayGet(obj, args)
		}
		return in.get(x.Indexer, obj, args)

	case *tree.New:
		return in.newObject(x, f)

	case *tree.NewArray:
		return in.newArray(x, f)

	case *tree.ListInit:
		obj, err := in.newObject(x.NewExpr, f)
		if err != nil {
			return nil, err
		}
		if err := in.addElements(obj, x.Initializers, f); err != nil {
			return nil, err
		}
		return obj, nil

	case *tree.MemberInit:
		obj, err := in.newObject(x.NewExpr, f)
		if err != nil {
			return nil, err
		}
		if err := in.bind(obj, x.Bindings, f); err != nil {
			return nil, err
		}
		return obj, nil

	case *tree.Dynamic:
		args, err := in.list(x.Arguments, f)
		if err != nil {
			return nil, err
		}
		return in.dynamic(x.Binder, args)
	}
	return nil, fmt.Errorf("interp: unsupported node %T", n)
}

// list 按顺序求值一组节点
func (in *Interpreter) list(nodes []tree.Node, f *frame) ([]any, error) {
	vals := make([]any, len(nodes))
	for i, n := range nodes {
		v, err := in.eval(n, f)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// operands 先求值接收者，再按顺序求值实参
func (in *Interpreter) operands(obj tree.Node, args []tree.Node, f *frame) (any, []any, error) {
	o, err := in.eval(obj, f)
	if err != nil {
		return nil, nil, err
	}
	vals, err := in.list(args, f)
	if err != nil {
		return nil, nil, err
	}
	return o, vals, nil
}

// ============================================================================
// 类型测试
// ============================================================================

func (in *Interpreter) typeTest(x *tree.TypeBinary, f *frame) (any, error) {
	v, err := in.eval(x.Operand, f)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return false, nil
	}
	dyn := types.DynamicType(v)
	if dyn == nil {
		dyn = types.NonNullable(x.Operand.Type())
	}
	if x.Op == tree.TypeEqual {
		return types.Identical(dyn, x.TypeOperand), nil
	}
	return instanceOf(dyn, x.TypeOperand), nil
}

func instanceOf(dyn, t *types.Type) bool {
	return types.IsAssignableTo(dyn, t) || types.Identical(dyn, types.NonNullable(t))
}

// ============================================================================
// 调用
// ============================================================================

func (in *Interpreter) invocation(x *tree.Invocation, f *frame) (any, error) {
	fn, err := in.eval(x.Expression, f)
	if err != nil {
		return nil, err
	}
	args, err := in.list(x.Arguments, f)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, types.NullReference()
	}
	c, ok := fn.(*Closure)
	if !ok {
		return nil, fmt.Errorf("interp: cannot invoke a %T", fn)
	}
	return in.apply(c, args)
}

// apply 调用闭包；按引用参数不写回
func (in *Interpreter) apply(c *Closure, args []any) (any, error) {
	in.stats.Invocations++
	if len(args) != len(c.Lambda.Parameters) {
		return nil, terrors.New(terrors.T0002, "lambda expects %d arguments, got %d", len(c.Lambda.Parameters), len(args))
	}
	scope := newFrame(c.env, nil)
	for i, p := range c.Lambda.Parameters {
		scope.declare(p, args[i])
	}
	return in.eval(c.Lambda.Body, scope)
}

func (in *Interpreter) call(x *tree.Call, f *frame) (any, error) {
	obj, args, err := in.operands(x.Object, x.Arguments, f)
	if err != nil {
		return nil, err
	}
	return in.invoke("call", x.Method, obj, args)
}

// invoke 执行成员并记录副作用
//
// 空接收者在记录之前就抛出空引用异常：成员本身没有执行。
func (in *Interpreter) invoke(kind string, m *types.Member, obj any, args []any) (any, error) {
	fn, err := in.factory.Member(m)
	if err != nil {
		return nil, err
	}
	instance := !m.Static && m.Kind != types.ConstructorMember
	if instance && obj == nil && !(m.DeclaringType != nil && m.DeclaringType.IsNullable()) {
		return nil, types.NullReference()
	}
	in.effect(kind, m, args)
	if instance {
		args = append([]any{obj}, args...)
	}
	return fn(args...)
}

// get 读取字段、属性或索引器
func (in *Interpreter) get(m *types.Member, obj any, args []any) (any, error) {
	return in.invoke("get", m, obj, args)
}

// set 写入字段、属性或索引器
func (in *Interpreter) set(m *types.Member, obj, value any, args []any) error {
	if m.Setter == nil {
		return terrors.New(terrors.T0201, "%s has no setter", m)
	}
	if !m.Static && obj == nil {
		return types.NullReference()
	}
	in.effect("set", m, append(append([]any(nil), args...), value))
	return hostError(m, m.Setter(obj, value, args))
}

// dynamic 动态调用点：绑定器实现直接接收全部实参
func (in *Interpreter) dynamic(b *types.Member, args []any) (any, error) {
	if b.Impl == nil {
		return nil, terrors.New(terrors.T0201, "dynamic binder %s", b)
	}
	in.effect("dynamic", b, args)
	v, err := b.Impl(nil, args)
	if err != nil {
		return nil, hostError(b, err)
	}
	return v, nil
}

// hostError 成员实现返回的错误：异常原样传播，其他错误标注成员
func hostError(m *types.Member, err error) error {
	if err == nil {
		return nil
	}
	var exc *types.Exception
	if errors.As(err, &exc) {
		return exc
	}
	return fmt.Errorf("interp: %s: %w", m, err)
}
