// Package types 定义表达式树使用的静态类型系统
//
// 类型分为三类：
//   - 基本类型：Bool、Char、各宽度整数、浮点、String、Object、Void
//   - 复合类型：Nullable、Array、Func、Quoted，按结构比较
//   - 命名类型：Class、Struct、Enum、Param，按身份比较
package types

import (
	"strings"
)

// Kind 类型种类
type Kind uint8

const (
	Invalid Kind = iota
	Void
	Bool
	Char
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	String
	Object
	Nullable
	Array
	Class
	Struct
	Enum
	Func
	Quoted
	RuntimeVariables
	Param
)

var kindNames = [...]string{
	Invalid:          "invalid",
	Void:             "void",
	Bool:             "bool",
	Char:             "char",
	Int8:             "sbyte",
	Uint8:            "byte",
	Int16:            "short",
	Uint16:           "ushort",
	Int32:            "int",
	Uint32:           "uint",
	Int64:            "long",
	Uint64:           "ulong",
	Float32:          "float",
	Float64:          "double",
	String:           "string",
	Object:           "object",
	Nullable:         "nullable",
	Array:            "array",
	Class:            "class",
	Struct:           "struct",
	Enum:             "enum",
	Func:             "func",
	Quoted:           "quoted",
	RuntimeVariables: "runtime-variables",
	Param:            "param",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive 是否为基本类型代码（有固定的 Go 值表示）
func (k Kind) IsPrimitive() bool {
	return k >= Bool && k <= String
}

// Type 静态类型
//
// Type 创建后不可变。命名类型（Class/Struct/Enum/Param）以指针身份区分，
// 复合类型通过 Identical 结构比较。
type Type struct {
	kind Kind
	name string

	elem   *Type   // Nullable/Array 的元素类型，Enum 的底层整数类型，Quoted 的 lambda 类型
	base   *Type   // Class 的基类
	params []*Type // Func 参数类型
	result *Type   // Func 返回类型

	template *Type   // 泛型实例的模板
	args     []*Type // 泛型实例的类型实参
	typeVars []*Type // 泛型模板的类型形参

	methods []*Member // 用户定义的运算符等方法
}

// 预定义基本类型
var (
	VoidType    = &Type{kind: Void, name: "void"}
	BoolType    = &Type{kind: Bool, name: "bool"}
	CharType    = &Type{kind: Char, name: "char"}
	Int8Type    = &Type{kind: Int8, name: "sbyte"}
	Uint8Type   = &Type{kind: Uint8, name: "byte"}
	Int16Type   = &Type{kind: Int16, name: "short"}
	Uint16Type  = &Type{kind: Uint16, name: "ushort"}
	Int32Type   = &Type{kind: Int32, name: "int"}
	Uint32Type  = &Type{kind: Uint32, name: "uint"}
	Int64Type   = &Type{kind: Int64, name: "long"}
	Uint64Type  = &Type{kind: Uint64, name: "ulong"}
	Float32Type = &Type{kind: Float32, name: "float"}
	Float64Type = &Type{kind: Float64, name: "double"}
	StringType  = &Type{kind: String, name: "string"}
	ObjectType  = &Type{kind: Object, name: "object"}

	// RuntimeVariablesType RuntimeVariables 节点的结果类型
	RuntimeVariablesType = &Type{kind: RuntimeVariables, name: "IRuntimeVariables"}
)

// Primitive 按类型代码返回预定义基本类型
func Primitive(k Kind) *Type {
	switch k {
	case Void:
		return VoidType
	case Bool:
		return BoolType
	case Char:
		return CharType
	case Int8:
		return Int8Type
	case Uint8:
		return Uint8Type
	case Int16:
		return Int16Type
	case Uint16:
		return Uint16Type
	case Int32:
		return Int32Type
	case Uint32:
		return Uint32Type
	case Int64:
		return Int64Type
	case Uint64:
		return Uint64Type
	case Float32:
		return Float32Type
	case Float64:
		return Float64Type
	case String:
		return StringType
	case Object:
		return ObjectType
	}
	return nil
}

// ============================================================================
// 构造函数
// ============================================================================

// NullableOf 返回 T? 类型；对已可空或引用类型原样返回
func NullableOf(t *Type) *Type {
	if t.kind == Nullable || (!t.IsValueType() && t.kind != Param) {
		return t
	}
	return &Type{kind: Nullable, elem: t}
}

// ArrayOf 返回一维数组类型 T[]
func ArrayOf(elem *Type) *Type {
	return &Type{kind: Array, elem: elem}
}

// FuncOf 返回函数类型
func FuncOf(params []*Type, result *Type) *Type {
	return &Type{kind: Func, params: params, result: result}
}

// QuotedOf 返回被引用 lambda 的类型（Expression<T>）
func QuotedOf(lambda *Type) *Type {
	return &Type{kind: Quoted, elem: lambda}
}

// NewClass 创建引用类型；base 为 nil 时继承 Object
func NewClass(name string, base *Type) *Type {
	if base == nil {
		base = ObjectType
	}
	return &Type{kind: Class, name: name, base: base}
}

// NewStruct 创建用户值类型
func NewStruct(name string) *Type {
	return &Type{kind: Struct, name: name}
}

// NewEnum 创建枚举类型，underlying 必须是整数类型
func NewEnum(name string, underlying *Type) *Type {
	return &Type{kind: Enum, name: name, elem: underlying}
}

// NewParam 创建类型形参
func NewParam(name string) *Type {
	return &Type{kind: Param, name: name}
}

// NewGeneric 创建开放泛型模板类型
func NewGeneric(kind Kind, name string, base *Type, typeVars ...*Type) *Type {
	if kind == Class && base == nil {
		base = ObjectType
	}
	return &Type{kind: kind, name: name, base: base, typeVars: typeVars}
}

// Instantiate 用类型实参实例化泛型模板
func (t *Type) Instantiate(args ...*Type) *Type {
	inst := &Type{kind: t.kind, name: t.name, template: t, args: args, methods: t.methods}
	if t.base != nil {
		inst.base = Substitute(t.base, Bindings(t.typeVars, args))
	}
	return inst
}

// AddMethod 为类型注册方法（运算符重载、op_True/op_False 等）
func (t *Type) AddMethod(m *Member) {
	t.methods = append(t.methods, m)
}

// ============================================================================
// 访问器
// ============================================================================

func (t *Type) Kind() Kind        { return t.kind }
func (t *Type) Name() string      { return t.name }
func (t *Type) Elem() *Type       { return t.elem }
func (t *Type) Base() *Type       { return t.base }
func (t *Type) Params() []*Type   { return t.params }
func (t *Type) Result() *Type     { return t.result }
func (t *Type) Template() *Type   { return t.template }
func (t *Type) Args() []*Type     { return t.args }
func (t *Type) TypeVars() []*Type { return t.typeVars }

// Underlying 返回枚举的底层类型，其他类型返回自身
func (t *Type) Underlying() *Type {
	if t.kind == Enum {
		return t.elem
	}
	return t
}

// Method 按名称查找方法，沿基类链向上
func (t *Type) Method(name string) *Member {
	for c := t; c != nil; c = c.base {
		for _, m := range c.methods {
			if m.Name == name {
				return m
			}
		}
		if c.template != nil {
			if m := c.template.Method(name); m != nil {
				return m
			}
		}
	}
	return nil
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case Nullable:
		return t.elem.String() + "?"
	case Array:
		return t.elem.String() + "[]"
	case Func:
		var sb strings.Builder
		sb.WriteString("Func<")
		for _, p := range t.params {
			sb.WriteString(p.String())
			sb.WriteString(", ")
		}
		sb.WriteString(t.result.String())
		sb.WriteString(">")
		return sb.String()
	case Quoted:
		return "Expression<" + t.elem.String() + ">"
	}
	if len(t.args) > 0 {
		parts := make([]string, len(t.args))
		for i, a := range t.args {
			parts[i] = a.String()
		}
		return t.name + "<" + strings.Join(parts, ", ") + ">"
	}
	if len(t.typeVars) > 0 {
		parts := make([]string, len(t.typeVars))
		for i, a := range t.typeVars {
			parts[i] = a.String()
		}
		return t.name + "<" + strings.Join(parts, ", ") + ">"
	}
	return t.name
}

// ============================================================================
// 比较
// ============================================================================

// Identical 判断两个类型是否相同
func Identical(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Nullable, Array, Quoted:
		return Identical(a.elem, b.elem)
	case Func:
		if len(a.params) != len(b.params) || !Identical(a.result, b.result) {
			return false
		}
		for i := range a.params {
			if !Identical(a.params[i], b.params[i]) {
				return false
			}
		}
		return true
	}
	if a.kind.IsPrimitive() || a.kind == Void || a.kind == Object || a.kind == RuntimeVariables {
		return true
	}
	// 泛型实例：模板相同且实参一一相同
	if a.template != nil && a.template == b.template && len(a.args) == len(b.args) {
		for i := range a.args {
			if !Identical(a.args[i], b.args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// IsSubclassOf 判断 t 是否为 base 的（非严格）子类
func IsSubclassOf(t, base *Type) bool {
	for c := t; c != nil; c = c.base {
		if Identical(c, base) {
			return true
		}
	}
	return false
}

// IsAssignableTo 判断 src 类型的值能否不经转换赋给 dst
func IsAssignableTo(src, dst *Type) bool {
	if Identical(src, dst) {
		return true
	}
	if dst.kind == Object && src.kind != Void {
		return !src.IsValueType()
	}
	if src.kind == Class || src.kind == Array || src.kind == String {
		return IsSubclassOf(src, dst)
	}
	return false
}
