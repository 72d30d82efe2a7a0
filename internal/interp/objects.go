package interp

import (
	"fmt"
	"reflect"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 对象与数组构造
// ============================================================================

// newObject 调用构造函数
//
// 没有构造函数的是值类型默认值；没有实现的异常类构造函数直接产生异常值。
func (in *Interpreter) newObject(x *tree.New, f *frame) (any, error) {
	if x.Constructor == nil {
		return types.Zero(x.Type()), nil
	}
	args, err := in.list(x.Arguments, f)
	if err != nil {
		return nil, err
	}
	ctor := x.Constructor
	if ctor.Impl == nil && ctor.DeclaringType != nil && types.IsException(ctor.DeclaringType) {
		in.effect("new", ctor, args)
		e := &types.Exception{Type: ctor.DeclaringType}
		if len(args) > 0 {
			if msg, ok := args[0].(string); ok {
				e.Message = msg
			}
		}
		return e, nil
	}
	return in.invoke("new", ctor, nil, args)
}

func (in *Interpreter) newArray(x *tree.NewArray, f *frame) (any, error) {
	vals, err := in.list(x.Expressions, f)
	if err != nil {
		return nil, err
	}
	elem := x.Type().Elem()
	if !x.Bounds {
		return vals, nil
	}
	return makeArray(elem, vals)
}

// makeArray 按各维长度创建数组；多维数组是数组的数组
func makeArray(elem *types.Type, bounds []any) (any, error) {
	if len(bounds) == 0 {
		return types.Zero(elem), nil
	}
	rv := reflect.ValueOf(bounds[0])
	var n int64
	switch {
	case rv.CanInt():
		n = rv.Int()
	case rv.CanUint():
		n = int64(rv.Uint())
	default:
		return nil, fmt.Errorf("interp: array bound %T", bounds[0])
	}
	if n < 0 {
		return nil, types.Overflow()
	}
	arr := make([]any, n)
	for i := range arr {
		v, err := makeArray(elem, bounds[1:])
		if err != nil {
			return nil, err
		}
		arr[i] = v
	}
	return arr, nil
}

// ============================================================================
// 初始化器
// ============================================================================

func (in *Interpreter) addElements(obj any, inits []*tree.ElementInit, f *frame) error {
	for _, e := range inits {
		args, err := in.list(e.Arguments, f)
		if err != nil {
			return err
		}
		if _, err := in.invoke("call", e.AddMethod, obj, args); err != nil {
			return err
		}
	}
	return nil
}

// bind 按顺序应用成员绑定
func (in *Interpreter) bind(obj any, bindings []*tree.MemberBinding, f *frame) error {
	for _, b := range bindings {
		switch b.BindingKind {
		case tree.BindAssignment:
			v, err := in.eval(b.Expression, f)
			if err != nil {
				return err
			}
			if err := in.set(b.Member, obj, v, nil); err != nil {
				return err
			}
		case tree.BindMember:
			sub, err := in.get(b.Member, obj, nil)
			if err != nil {
				return err
			}
			if err := in.bind(sub, b.Bindings, f); err != nil {
				return err
			}
		case tree.BindList:
			sub, err := in.get(b.Member, obj, nil)
			if err != nil {
				return err
			}
			if err := in.addElements(sub, b.Initializers, f); err != nil {
				return err
			}
		default:
			return terrors.New(terrors.T0200, "binding kind %d", b.BindingKind)
		}
	}
	return nil
}
