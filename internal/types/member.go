package types

import (
	"strings"
)

// MemberKind 成员种类
type MemberKind uint8

const (
	MethodMember MemberKind = iota
	FieldMember
	PropertyMember
	ConstructorMember
)

func (k MemberKind) String() string {
	switch k {
	case MethodMember:
		return "method"
	case FieldMember:
		return "field"
	case PropertyMember:
		return "property"
	case ConstructorMember:
		return "constructor"
	}
	return "unknown"
}

// ParamInfo 成员参数
type ParamInfo struct {
	Name  string
	Type  *Type
	ByRef bool // 按引用传递（ref/out）
}

// Impl 成员的 Go 实现：obj 为实例（静态成员为 nil），args 为实参
//
// 返回的 error 若为 *Exception 表示目标程序抛出的异常。
type Impl func(obj any, args []any) (any, error)

// Setter 字段/属性的赋值实现
type Setter func(obj any, value any, args []any) error

// Member 成员描述符（方法、字段、属性、构造函数）
type Member struct {
	Kind          MemberKind
	Name          string
	DeclaringType *Type
	Static        bool
	Params        []ParamInfo
	Result        *Type // 方法返回类型；字段/属性类型；构造函数为声明类型
	CanWrite      bool  // 字段/属性可写

	// TypeParams 开放泛型方法的类型形参
	TypeParams []*Type
	// Template/TypeArgs 封闭泛型方法实例的来源
	Template *Member
	TypeArgs []*Type

	Impl   Impl
	Setter Setter
}

// NewMethod 创建方法描述符
func NewMethod(decl *Type, name string, static bool, result *Type, params ...ParamInfo) *Member {
	return &Member{Kind: MethodMember, Name: name, DeclaringType: decl, Static: static, Result: result, Params: params}
}

// NewField 创建字段描述符
func NewField(decl *Type, name string, static bool, typ *Type, writable bool) *Member {
	return &Member{Kind: FieldMember, Name: name, DeclaringType: decl, Static: static, Result: typ, CanWrite: writable}
}

// NewProperty 创建属性描述符；带参数即为索引器
func NewProperty(decl *Type, name string, static bool, typ *Type, writable bool, params ...ParamInfo) *Member {
	return &Member{Kind: PropertyMember, Name: name, DeclaringType: decl, Static: static, Result: typ, CanWrite: writable, Params: params}
}

// NewConstructor 创建构造函数描述符
func NewConstructor(decl *Type, params ...ParamInfo) *Member {
	return &Member{Kind: ConstructorMember, Name: ".ctor", DeclaringType: decl, Result: decl, Params: params}
}

// P 构造参数信息的简写
func P(name string, t *Type) ParamInfo { return ParamInfo{Name: name, Type: t} }

// Ref 构造按引用参数
func Ref(name string, t *Type) ParamInfo { return ParamInfo{Name: name, Type: t, ByRef: true} }

// WithImpl 设置实现并返回自身，便于链式构造
func (m *Member) WithImpl(impl Impl) *Member {
	m.Impl = impl
	return m
}

// WithSetter 设置赋值实现
func (m *Member) WithSetter(set Setter) *Member {
	m.Setter = set
	return m
}

// IsOpenGeneric 是否为未实例化的泛型成员
func (m *Member) IsOpenGeneric() bool {
	if len(m.TypeParams) > 0 && m.Template == nil {
		return true
	}
	return m.DeclaringType != nil && len(m.DeclaringType.typeVars) > 0
}

// HasByRefParams 是否含按引用参数
func (m *Member) HasByRefParams() bool {
	for _, p := range m.Params {
		if p.ByRef {
			return true
		}
	}
	return false
}

// Instantiate 用类型实参实例化泛型方法
func (m *Member) Instantiate(typeArgs ...*Type) *Member {
	b := Bindings(m.TypeParams, typeArgs)
	inst := *m
	inst.Template = m
	inst.TypeArgs = typeArgs
	inst.TypeParams = nil
	inst.Result = Substitute(m.Result, b)
	inst.Params = make([]ParamInfo, len(m.Params))
	for i, p := range m.Params {
		inst.Params[i] = ParamInfo{Name: p.Name, Type: Substitute(p.Type, b), ByRef: p.ByRef}
	}
	return &inst
}

// OnType 把泛型类型模板上的成员映射到类型实例上
func (m *Member) OnType(inst *Type) *Member {
	if inst.template == nil {
		return m
	}
	out := m.Specialize(Bindings(inst.template.typeVars, inst.args))
	out.DeclaringType = inst
	return out
}

// Specialize 按替换表替换成员签名中的类型形参，结果以 m 为模板
func (m *Member) Specialize(b map[*Type]*Type) *Member {
	out := *m
	out.DeclaringType = Substitute(m.DeclaringType, b)
	out.Template = m
	out.Result = Substitute(m.Result, b)
	out.Params = make([]ParamInfo, len(m.Params))
	for i, p := range m.Params {
		out.Params[i] = ParamInfo{Name: p.Name, Type: Substitute(p.Type, b), ByRef: p.ByRef}
	}
	return &out
}

// Root 返回泛型成员的最初模板
func (m *Member) Root() *Member {
	r := m
	for r.Template != nil {
		r = r.Template
	}
	return r
}

func (m *Member) String() string {
	var sb strings.Builder
	if m.DeclaringType != nil {
		sb.WriteString(m.DeclaringType.String())
		sb.WriteString(".")
	}
	sb.WriteString(m.Name)
	if len(m.TypeArgs) > 0 || len(m.TypeParams) > 0 {
		targs := m.TypeArgs
		if len(targs) == 0 {
			targs = m.TypeParams
		}
		parts := make([]string, len(targs))
		for i, a := range targs {
			parts[i] = a.String()
		}
		sb.WriteString("<" + strings.Join(parts, ", ") + ">")
	}
	if m.Kind == MethodMember || m.Kind == ConstructorMember || len(m.Params) > 0 {
		parts := make([]string, len(m.Params))
		for i, p := range m.Params {
			parts[i] = p.Type.String()
			if p.ByRef {
				parts[i] = "ref " + parts[i]
			}
		}
		sb.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	return sb.String()
}
