// Package tree 定义优化器处理的表达式树中间表示
//
// 节点种类是封闭的：所有遍历都通过类型 switch 显式分派，不依赖继承扩展。
// 节点创建后视为不可变，重写通过 Update 方法产生新节点；
// 子节点未变化时 Update 返回接收者本身，便于用指针比较判断是否发生重写。
package tree

import (
	"github.com/tangzhangming/treeopt/internal/types"
)

// NodeKind 节点种类
type NodeKind uint8

const (
	KindConstant NodeKind = iota
	KindDefault
	KindParameter
	KindUnary
	KindBinary
	KindTypeBinary
	KindBlock
	KindConditional
	KindTry
	KindThrow
	KindLambda
	KindInvocation
	KindCall
	KindMemberAccess
	KindIndex
	KindNew
	KindNewArray
	KindListInit
	KindMemberInit
	KindDynamic
	KindQuote
	KindRuntimeVariables
	KindLabel
	KindGoto
	KindLoop
	KindSwitch
)

var kindNames = [...]string{
	KindConstant:         "Constant",
	KindDefault:          "Default",
	KindParameter:        "Parameter",
	KindUnary:            "Unary",
	KindBinary:           "Binary",
	KindTypeBinary:       "TypeBinary",
	KindBlock:            "Block",
	KindConditional:      "Conditional",
	KindTry:              "Try",
	KindThrow:            "Throw",
	KindLambda:           "Lambda",
	KindInvocation:       "Invocation",
	KindCall:             "Call",
	KindMemberAccess:     "MemberAccess",
	KindIndex:            "Index",
	KindNew:              "New",
	KindNewArray:         "NewArray",
	KindListInit:         "ListInit",
	KindMemberInit:       "MemberInit",
	KindDynamic:          "Dynamic",
	KindQuote:            "Quote",
	KindRuntimeVariables: "RuntimeVariables",
	KindLabel:            "Label",
	KindGoto:             "Goto",
	KindLoop:             "Loop",
	KindSwitch:           "Switch",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Node?"
}

// Node 表达式树节点
type Node interface {
	Kind() NodeKind
	Type() *types.Type
}

// ============================================================================
// 叶子节点
// ============================================================================

// Constant 常量
type Constant struct {
	Value any
	typ   *types.Type
}

func (n *Constant) Kind() NodeKind    { return KindConstant }
func (n *Constant) Type() *types.Type { return n.typ }

// Default 类型默认值
type Default struct {
	typ *types.Type
}

func (n *Default) Kind() NodeKind    { return KindDefault }
func (n *Default) Type() *types.Type { return n.typ }

// Parameter 变量或参数，按指针身份区分
type Parameter struct {
	Name  string
	ByRef bool
	typ   *types.Type
}

func (n *Parameter) Kind() NodeKind    { return KindParameter }
func (n *Parameter) Type() *types.Type { return n.typ }

// RuntimeVariables 运行时变量列表
type RuntimeVariables struct {
	Variables []*Parameter
}

func (n *RuntimeVariables) Kind() NodeKind    { return KindRuntimeVariables }
func (n *RuntimeVariables) Type() *types.Type { return types.RuntimeVariablesType }

// Update 替换变量列表
func (n *RuntimeVariables) Update(vars []*Parameter) *RuntimeVariables {
	if same(vars, n.Variables) {
		return n
	}
	return &RuntimeVariables{Variables: vars}
}

// ============================================================================
// 运算
// ============================================================================

// Unary 一元运算
type Unary struct {
	Op      UnaryOp
	Operand Node
	Method  *types.Member // 重载运算符；nil 表示内建语义
	typ     *types.Type
}

func (n *Unary) Kind() NodeKind    { return KindUnary }
func (n *Unary) Type() *types.Type { return n.typ }

// IsLifted 操作数为可空而运算定义在非可空类型上
func (n *Unary) IsLifted() bool {
	if n.Op.IsConversion() || n.Op == ArrayLength {
		return n.Operand.Type().IsNullable() && n.typ.IsNullable()
	}
	return n.Operand.Type().IsNullable()
}

// Update 替换操作数
func (n *Unary) Update(operand Node) *Unary {
	if operand == n.Operand {
		return n
	}
	return &Unary{Op: n.Op, Operand: operand, Method: n.Method, typ: n.typ}
}

// Binary 二元运算
type Binary struct {
	Op         BinaryOp
	Left       Node
	Right      Node
	Method     *types.Member
	LiftToNull bool    // 可空比较结果为 bool? 而不是 bool
	Conversion *Lambda // Coalesce 的转换 lambda，复合赋值的结果转换
	typ        *types.Type
}

func (n *Binary) Kind() NodeKind    { return KindBinary }
func (n *Binary) Type() *types.Type { return n.typ }

// IsLifted 是否为提升运算
func (n *Binary) IsLifted() bool {
	if n.Op == Coalesce || n.Op == Assign || n.Op == ArrayIndex {
		return false
	}
	l, r := n.Left.Type(), n.Right.Type()
	if n.Method != nil && len(n.Method.Params) == 2 {
		return (l.IsNullable() && !n.Method.Params[0].Type.IsNullable()) ||
			(r.IsNullable() && !n.Method.Params[1].Type.IsNullable())
	}
	return l.IsNullable() || r.IsNullable()
}

// IsLiftedToNull 提升且结果为可空
func (n *Binary) IsLiftedToNull() bool {
	return n.IsLifted() && n.typ.IsNullable()
}

// Update 替换子节点
func (n *Binary) Update(left Node, conversion *Lambda, right Node) *Binary {
	if left == n.Left && right == n.Right && conversion == n.Conversion {
		return n
	}
	return &Binary{Op: n.Op, Left: left, Right: right, Method: n.Method, LiftToNull: n.LiftToNull, Conversion: conversion, typ: n.typ}
}

// TypeBinary 类型测试
type TypeBinary struct {
	Op          TypeBinaryOp
	Operand     Node
	TypeOperand *types.Type
}

func (n *TypeBinary) Kind() NodeKind    { return KindTypeBinary }
func (n *TypeBinary) Type() *types.Type { return types.BoolType }

// Update 替换操作数
func (n *TypeBinary) Update(operand Node) *TypeBinary {
	if operand == n.Operand {
		return n
	}
	return &TypeBinary{Op: n.Op, Operand: operand, TypeOperand: n.TypeOperand}
}

// ============================================================================
// 控制流
// ============================================================================

// Block 语句块，声明变量作用域
type Block struct {
	Variables   []*Parameter
	Expressions []Node
	typ         *types.Type
}

func (n *Block) Kind() NodeKind    { return KindBlock }
func (n *Block) Type() *types.Type { return n.typ }

// Result 块的最后一个表达式
func (n *Block) Result() Node { return n.Expressions[len(n.Expressions)-1] }

// Update 替换变量与语句
func (n *Block) Update(vars []*Parameter, exprs []Node) *Block {
	if same(vars, n.Variables) && same(exprs, n.Expressions) {
		return n
	}
	return &Block{Variables: vars, Expressions: exprs, typ: n.typ}
}

// Conditional 条件表达式
type Conditional struct {
	Test    Node
	IfTrue  Node
	IfFalse Node
	typ     *types.Type
}

func (n *Conditional) Kind() NodeKind    { return KindConditional }
func (n *Conditional) Type() *types.Type { return n.typ }

// Update 替换子节点
func (n *Conditional) Update(test, ifTrue, ifFalse Node) *Conditional {
	if test == n.Test && ifTrue == n.IfTrue && ifFalse == n.IfFalse {
		return n
	}
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse, typ: n.typ}
}

// CatchBlock catch 子句
type CatchBlock struct {
	Test     *types.Type // 捕获的异常类型
	Variable *Parameter  // 可为 nil
	Filter   Node        // 可为 nil
	Body     Node
}

// Update 替换子节点
func (c *CatchBlock) Update(variable *Parameter, filter, body Node) *CatchBlock {
	if variable == c.Variable && filter == c.Filter && body == c.Body {
		return c
	}
	return &CatchBlock{Test: c.Test, Variable: variable, Filter: filter, Body: body}
}

// Try try/catch/finally/fault
type Try struct {
	Body     Node
	Handlers []*CatchBlock
	Finally  Node
	Fault    Node
	typ      *types.Type
}

func (n *Try) Kind() NodeKind    { return KindTry }
func (n *Try) Type() *types.Type { return n.typ }

// Update 替换子节点
func (n *Try) Update(body Node, handlers []*CatchBlock, finally, fault Node) *Try {
	if body == n.Body && finally == n.Finally && fault == n.Fault && same(handlers, n.Handlers) {
		return n
	}
	return &Try{Body: body, Handlers: handlers, Finally: finally, Fault: fault, typ: n.typ}
}

// Throw 抛出异常；Value 为 nil 表示重新抛出当前异常
type Throw struct {
	Value Node
	typ   *types.Type
}

func (n *Throw) Kind() NodeKind    { return KindThrow }
func (n *Throw) Type() *types.Type { return n.typ }

// IsRethrow 是否为无条件重新抛出
func (n *Throw) IsRethrow() bool { return n.Value == nil }

// Update 替换抛出值
func (n *Throw) Update(value Node) *Throw {
	if value == n.Value {
		return n
	}
	return &Throw{Value: value, typ: n.typ}
}

// LabelTarget 跳转目标
type LabelTarget struct {
	Name string
	Type *types.Type
}

// Label 标签；Default 为正常流入时的值
type Label struct {
	Target  *LabelTarget
	Default Node
}

func (n *Label) Kind() NodeKind    { return KindLabel }
func (n *Label) Type() *types.Type { return n.Target.Type }

// Update 替换默认值
func (n *Label) Update(def Node) *Label {
	if def == n.Default {
		return n
	}
	return &Label{Target: n.Target, Default: def}
}

// Goto 跳转
type Goto struct {
	GotoKind GotoKind
	Target   *LabelTarget
	Value    Node
	typ      *types.Type
}

func (n *Goto) Kind() NodeKind    { return KindGoto }
func (n *Goto) Type() *types.Type { return n.typ }

// Update 替换携带值
func (n *Goto) Update(value Node) *Goto {
	if value == n.Value {
		return n
	}
	return &Goto{GotoKind: n.GotoKind, Target: n.Target, Value: value, typ: n.typ}
}

// Loop 无限循环，通过 Break/Continue 目标退出
type Loop struct {
	Body     Node
	Break    *LabelTarget
	Continue *LabelTarget
}

func (n *Loop) Kind() NodeKind { return KindLoop }
func (n *Loop) Type() *types.Type {
	if n.Break != nil {
		return n.Break.Type
	}
	return types.VoidType
}

// Update 替换循环体
func (n *Loop) Update(body Node) *Loop {
	if body == n.Body {
		return n
	}
	return &Loop{Body: body, Break: n.Break, Continue: n.Continue}
}

// SwitchCase switch 分支
type SwitchCase struct {
	TestValues []Node
	Body       Node
}

// Update 替换子节点
func (c *SwitchCase) Update(tests []Node, body Node) *SwitchCase {
	if same(tests, c.TestValues) && body == c.Body {
		return c
	}
	return &SwitchCase{TestValues: tests, Body: body}
}

// Switch 多路分支
type Switch struct {
	SwitchValue Node
	Cases       []*SwitchCase
	Default     Node
	Comparison  *types.Member
	typ         *types.Type
}

func (n *Switch) Kind() NodeKind    { return KindSwitch }
func (n *Switch) Type() *types.Type { return n.typ }

// Update 替换子节点
func (n *Switch) Update(value Node, cases []*SwitchCase, def Node) *Switch {
	if value == n.SwitchValue && def == n.Default && same(cases, n.Cases) {
		return n
	}
	return &Switch{SwitchValue: value, Cases: cases, Default: def, Comparison: n.Comparison, typ: n.typ}
}

// ============================================================================
// 函数
// ============================================================================

// Lambda 匿名函数
type Lambda struct {
	Name       string
	Parameters []*Parameter
	Body       Node
	typ        *types.Type
}

func (n *Lambda) Kind() NodeKind    { return KindLambda }
func (n *Lambda) Type() *types.Type { return n.typ }

// ReturnType lambda 的返回类型
func (n *Lambda) ReturnType() *types.Type { return n.typ.Result() }

// Update 替换参数与函数体
func (n *Lambda) Update(body Node, params []*Parameter) *Lambda {
	if body == n.Body && same(params, n.Parameters) {
		return n
	}
	return &Lambda{Name: n.Name, Parameters: params, Body: body, typ: n.typ}
}

// Invocation 调用委托或 lambda
type Invocation struct {
	Expression Node
	Arguments  []Node
	typ        *types.Type
}

func (n *Invocation) Kind() NodeKind    { return KindInvocation }
func (n *Invocation) Type() *types.Type { return n.typ }

// Update 替换子节点
func (n *Invocation) Update(expr Node, args []Node) *Invocation {
	if expr == n.Expression && same(args, n.Arguments) {
		return n
	}
	return &Invocation{Expression: expr, Arguments: args, typ: n.typ}
}

// Quote 引用的 lambda（表达式树本身作为值）
type Quote struct {
	Operand *Lambda
}

func (n *Quote) Kind() NodeKind    { return KindQuote }
func (n *Quote) Type() *types.Type { return types.QuotedOf(n.Operand.Type()) }

// Update 替换被引用的 lambda
func (n *Quote) Update(operand *Lambda) *Quote {
	if operand == n.Operand {
		return n
	}
	return &Quote{Operand: operand}
}

// ============================================================================
// 成员访问与对象创建
// ============================================================================

// Call 方法调用
type Call struct {
	Object    Node // 静态方法为 nil
	Method    *types.Member
	Arguments []Node
}

func (n *Call) Kind() NodeKind    { return KindCall }
func (n *Call) Type() *types.Type { return n.Method.Result }

// Update 替换子节点
func (n *Call) Update(obj Node, args []Node) *Call {
	if obj == n.Object && same(args, n.Arguments) {
		return n
	}
	return &Call{Object: obj, Method: n.Method, Arguments: args}
}

// MemberAccess 字段或属性访问
type MemberAccess struct {
	Object Node // 静态成员为 nil
	Member *types.Member
}

func (n *MemberAccess) Kind() NodeKind    { return KindMemberAccess }
func (n *MemberAccess) Type() *types.Type { return n.Member.Result }

// Update 替换对象
func (n *MemberAccess) Update(obj Node) *MemberAccess {
	if obj == n.Object {
		return n
	}
	return &MemberAccess{Object: obj, Member: n.Member}
}

// Index 索引访问；Indexer 为 nil 时是数组元素访问
type Index struct {
	Object    Node
	Indexer   *types.Member
	Arguments []Node
}

func (n *Index) Kind() NodeKind { return KindIndex }
func (n *Index) Type() *types.Type {
	if n.Indexer == nil {
		return n.Object.Type().Elem()
	}
	return n.Indexer.Result
}

// Update 替换子节点
func (n *Index) Update(obj Node, args []Node) *Index {
	if obj == n.Object && same(args, n.Arguments) {
		return n
	}
	return &Index{Object: obj, Indexer: n.Indexer, Arguments: args}
}

// New 对象创建；Constructor 为 nil 时创建值类型默认实例
type New struct {
	Constructor *types.Member
	Arguments   []Node
	typ         *types.Type
}

func (n *New) Kind() NodeKind    { return KindNew }
func (n *New) Type() *types.Type { return n.typ }

// Update 替换实参
func (n *New) Update(args []Node) *New {
	if same(args, n.Arguments) {
		return n
	}
	return &New{Constructor: n.Constructor, Arguments: args, typ: n.typ}
}

// NewArray 数组创建：Bounds 为 true 时 Expressions 是长度，否则为初始元素
type NewArray struct {
	Bounds      bool
	Expressions []Node
	typ         *types.Type
}

func (n *NewArray) Kind() NodeKind    { return KindNewArray }
func (n *NewArray) Type() *types.Type { return n.typ }

// Update 替换子节点
func (n *NewArray) Update(exprs []Node) *NewArray {
	if same(exprs, n.Expressions) {
		return n
	}
	return &NewArray{Bounds: n.Bounds, Expressions: exprs, typ: n.typ}
}

// ElementInit 集合初始化项（调用 Add 方法）
type ElementInit struct {
	AddMethod *types.Member
	Arguments []Node
}

// Update 替换实参
func (e *ElementInit) Update(args []Node) *ElementInit {
	if same(args, e.Arguments) {
		return e
	}
	return &ElementInit{AddMethod: e.AddMethod, Arguments: args}
}

// ListInit 集合初始化
type ListInit struct {
	NewExpr      *New
	Initializers []*ElementInit
}

func (n *ListInit) Kind() NodeKind    { return KindListInit }
func (n *ListInit) Type() *types.Type { return n.NewExpr.Type() }

// Update 替换子节点
func (n *ListInit) Update(newExpr *New, inits []*ElementInit) *ListInit {
	if newExpr == n.NewExpr && same(inits, n.Initializers) {
		return n
	}
	return &ListInit{NewExpr: newExpr, Initializers: inits}
}

// MemberBinding 成员初始化绑定
type MemberBinding struct {
	BindingKind  BindingKind
	Member       *types.Member
	Expression   Node             // BindAssignment
	Bindings     []*MemberBinding // BindMember
	Initializers []*ElementInit   // BindList
}

// Update 替换子节点
func (b *MemberBinding) Update(expr Node, bindings []*MemberBinding, inits []*ElementInit) *MemberBinding {
	if expr == b.Expression && same(bindings, b.Bindings) && same(inits, b.Initializers) {
		return b
	}
	return &MemberBinding{BindingKind: b.BindingKind, Member: b.Member, Expression: expr, Bindings: bindings, Initializers: inits}
}

// MemberInit 对象初始化
type MemberInit struct {
	NewExpr  *New
	Bindings []*MemberBinding
}

func (n *MemberInit) Kind() NodeKind    { return KindMemberInit }
func (n *MemberInit) Type() *types.Type { return n.NewExpr.Type() }

// Update 替换子节点
func (n *MemberInit) Update(newExpr *New, bindings []*MemberBinding) *MemberInit {
	if newExpr == n.NewExpr && same(bindings, n.Bindings) {
		return n
	}
	return &MemberInit{NewExpr: newExpr, Bindings: bindings}
}

// Dynamic 动态分派调用；Binder 描述调用点（参数的 ByRef、返回类型与实现）
type Dynamic struct {
	Binder    *types.Member
	Arguments []Node
}

func (n *Dynamic) Kind() NodeKind    { return KindDynamic }
func (n *Dynamic) Type() *types.Type { return n.Binder.Result }

// Update 替换实参
func (n *Dynamic) Update(args []Node) *Dynamic {
	if same(args, n.Arguments) {
		return n
	}
	return &Dynamic{Binder: n.Binder, Arguments: args}
}

// ============================================================================
// 辅助
// ============================================================================

func same[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
