package purity

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"

	"go.uber.org/multierr"

	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 成员库
// ============================================================================

// Library 按 "类型.成员" 名称索引的成员集合，用于把配置中的名称解析成成员
type Library struct {
	types   map[string]*types.Type
	members map[string][]*types.Member
	flags   map[*types.Member]Flags
}

// NewLibrary 创建空库
func NewLibrary() *Library {
	return &Library{
		types:   make(map[string]*types.Type),
		members: make(map[string][]*types.Member),
		flags:   make(map[*types.Member]Flags),
	}
}

// Register 登记成员及其已知属性；flags 为 0 表示已知有副作用
func (l *Library) Register(m *types.Member, flags Flags) *types.Member {
	if m.DeclaringType != nil && m.DeclaringType.Kind() != types.Nullable {
		l.types[typeName(m.DeclaringType)] = m.DeclaringType
	}
	name := qualified(m)
	l.members[name] = append(l.members[name], m)
	l.flags[m] = flags
	return m
}

func qualified(m *types.Member) string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return typeName(m.DeclaringType) + "." + strings.TrimPrefix(m.Name, ".")
}

// 基本类型按框架名称登记：String.Length 而不是 string.Length
var primitiveNames = map[types.Kind]string{
	types.Bool:    "Boolean",
	types.Char:    "Char",
	types.Int8:    "SByte",
	types.Uint8:   "Byte",
	types.Int16:   "Int16",
	types.Uint16:  "UInt16",
	types.Int32:   "Int32",
	types.Uint32:  "UInt32",
	types.Int64:   "Int64",
	types.Uint64:  "UInt64",
	types.Float32: "Single",
	types.Float64: "Double",
	types.String:  "String",
	types.Object:  "Object",
}

func typeName(t *types.Type) string {
	if t.Kind() == types.Nullable {
		return "Nullable"
	}
	if name, ok := primitiveNames[t.Kind()]; ok {
		return name
	}
	return t.Name()
}

// Type 按名称查找类型
func (l *Library) Type(name string) *types.Type {
	return l.types[name]
}

// Lookup 按 "类型.成员" 查找（重载返回多个）
func (l *Library) Lookup(name string) []*types.Member {
	return l.members[name]
}

// Member 返回唯一的同名成员，不存在或有重载时 panic
func (l *Library) Member(name string) *types.Member {
	ms := l.members[name]
	if len(ms) != 1 {
		panic(fmt.Sprintf("library: %d members named %s", len(ms), name))
	}
	return ms[0]
}

// Specialize 把唯一的同名成员中的类型形参按出现顺序绑定到 args
//
//	lib.Specialize("Nullable.HasValue", types.Int32Type) // int?.HasValue
//	lib.Specialize("Operators.Identity", types.StringType)
func (l *Library) Specialize(name string, args ...*types.Type) *types.Member {
	m := l.Member(name)
	if len(m.TypeParams) > 0 {
		return m.Instantiate(args...)
	}
	var vars []*types.Type
	if m.DeclaringType != nil {
		vars = types.FreeParams(m.DeclaringType)
	}
	return m.Specialize(types.Bindings(vars, args))
}

// Names 所有已登记名称（排序）
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.members))
	for n := range l.members {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Catalog 用给定名称构建并冻结目录；名称可以是 "类型.成员" 或 "类型.*"
//
// 未知名称与已知有副作用的成员都会作为错误返回（用 multierr 合并），
// 其余名称仍被登记。
func (l *Library) Catalog(names ...string) (*Catalog, error) {
	c := NewCatalog()
	var err error
	for _, name := range names {
		ms := l.resolve(name)
		if len(ms) == 0 {
			err = multierr.Append(err, fmt.Errorf("unknown member %q", name))
			continue
		}
		for _, m := range ms {
			f := l.flags[m]
			if f == 0 {
				if !strings.HasSuffix(name, ".*") {
					err = multierr.Append(err, fmt.Errorf("member %s has side effects", qualified(m)))
				}
				continue
			}
			c.MustAdd(m, f)
		}
	}
	return c.Freeze(), err
}

func (l *Library) resolve(name string) []*types.Member {
	if prefix, ok := strings.CutSuffix(name, ".*"); ok {
		var out []*types.Member
		for _, n := range l.Names() {
			if strings.HasPrefix(n, prefix+".") {
				out = append(out, l.members[n]...)
			}
		}
		return out
	}
	return l.members[name]
}

// ============================================================================
// 内置库
// ============================================================================

// 内置类型
var (
	MathType      = types.NewClass("Math", nil)
	OperatorsType = types.NewClass("Operators", nil)
	ConsoleType   = types.NewClass("Console", nil)
	CounterType   = types.NewClass("Counter", nil)
)

// Builtins 返回内置成员库
//
// 纯成员：Math.Max/Min/Sqrt、String.Length/Concat/IsNullOrEmpty/ToUpperInvariant、
// Char.IsDigit、Nullable<T>.HasValue 与构造函数、Operators.Identity<T>、
// ArgumentException 构造函数。
// 有副作用的成员：Console.WriteLine、Counter.Next，供测试与演示记录副作用。
func Builtins() *Library {
	l := NewLibrary()
	i32, f64, str := types.Int32Type, types.Float64Type, types.StringType

	l.Register(types.NewMethod(MathType, "Max", true, i32, types.P("a", i32), types.P("b", i32)).
		WithImpl(func(_ any, args []any) (any, error) {
			return max(args[0].(int32), args[1].(int32)), nil
		}), Pure)
	l.Register(types.NewMethod(MathType, "Min", true, i32, types.P("a", i32), types.P("b", i32)).
		WithImpl(func(_ any, args []any) (any, error) {
			return min(args[0].(int32), args[1].(int32)), nil
		}), Pure)
	l.Register(types.NewMethod(MathType, "Sqrt", true, f64, types.P("d", f64)).
		WithImpl(func(_ any, args []any) (any, error) {
			return math.Sqrt(args[0].(float64)), nil
		}), Pure)

	l.Register(types.NewProperty(str, "Length", false, i32, false).
		WithImpl(func(obj any, _ []any) (any, error) {
			return int32(len(utf16.Encode([]rune(obj.(string))))), nil
		}), Pure)
	l.Register(types.NewMethod(str, "Concat", true, str, types.P("a", str), types.P("b", str)).
		WithImpl(func(_ any, args []any) (any, error) {
			a, _ := args[0].(string)
			b, _ := args[1].(string)
			return a + b, nil
		}), Pure)
	l.Register(types.NewMethod(str, "IsNullOrEmpty", true, types.BoolType, types.P("s", str)).
		WithImpl(func(_ any, args []any) (any, error) {
			s, _ := args[0].(string)
			return s == "", nil
		}), Pure)
	l.Register(types.NewMethod(str, "ToUpperInvariant", false, str).
		WithImpl(func(obj any, _ []any) (any, error) {
			return strings.ToUpper(obj.(string)), nil
		}), Pure)

	l.Register(types.NewMethod(types.CharType, "IsDigit", true, types.BoolType, types.P("c", types.CharType)).
		WithImpl(func(_ any, args []any) (any, error) {
			return unicode.IsDigit(rune(args[0].(uint16))), nil
		}), Pure)

	t := types.NewParam("T")
	nullableT := types.NullableOf(t)
	l.Register(types.NewProperty(nullableT, "HasValue", false, types.BoolType, false).
		WithImpl(func(obj any, _ []any) (any, error) {
			return obj != nil, nil
		}), Pure)
	l.Register(types.NewConstructor(nullableT, types.P("value", t)).
		WithImpl(func(_ any, args []any) (any, error) {
			return args[0], nil
		}), Pure)

	u := types.NewParam("T")
	id := types.NewMethod(OperatorsType, "Identity", true, u, types.P("value", u))
	id.TypeParams = []*types.Type{u}
	l.Register(id.WithImpl(func(_ any, args []any) (any, error) {
		return args[0], nil
	}), Pure|Identity)

	l.Register(types.NewConstructor(types.ArgumentExceptionType), Pure)

	l.Register(types.NewMethod(ConsoleType, "WriteLine", true, types.VoidType, types.P("value", str)).
		WithImpl(func(_ any, _ []any) (any, error) {
			return nil, nil
		}), 0)
	var next int32
	l.Register(types.NewMethod(CounterType, "Next", true, i32).
		WithImpl(func(_ any, _ []any) (any, error) {
			next++
			return next, nil
		}), 0)

	return l
}
