package tree

import (
	"fmt"

	"go.uber.org/multierr"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/types"
)

// ============================================================================
// 节点工厂
// ============================================================================
//
// NewXxx 校验参数并返回错误（宿主误用通道），同一节点的多个问题用 multierr 合并；
// MakeXxx 是对应的 must 版本，校验失败时以 *errors.Error panic，供测试与
// 已知类型正确的重写代码使用。
//
// ============================================================================

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch x := n.(type) {
	case *Parameter:
		return x == nil
	case *Lambda:
		return x == nil
	case *New:
		return x == nil
	}
	return false
}

func nilArg(what string) error {
	return terrors.New(terrors.T0001, "%s", what)
}

// IsLvalue 节点能否作为赋值目标
func IsLvalue(n Node) bool {
	switch x := n.(type) {
	case *Parameter:
		return true
	case *MemberAccess:
		return x.Member.CanWrite
	case *Index:
		return x.Indexer == nil || x.Indexer.CanWrite
	}
	return false
}

func checkArgs(what string, params []types.ParamInfo, args []Node) error {
	if len(params) != len(args) {
		return terrors.New(terrors.T0002, "%s expects %d arguments, got %d", what, len(params), len(args))
	}
	var err error
	for i, a := range args {
		if isNil(a) {
			err = multierr.Append(err, nilArg(fmt.Sprintf("%s argument %d", what, i)))
			continue
		}
		p := params[i]
		if !assignable(a.Type(), p.Type) {
			err = multierr.Append(err, terrors.New(terrors.T0003, "%s argument %d: %s is not assignable to %s", what, i, a.Type(), p.Type))
		}
		if p.ByRef && !IsLvalue(a) {
			err = multierr.Append(err, terrors.New(terrors.T0004, "%s argument %d", what, i))
		}
	}
	return err
}

func assignable(src, dst *types.Type) bool {
	return types.IsAssignableTo(src, dst)
}

func checkInstance(m *types.Member, obj Node) error {
	if m.Static && obj != nil {
		return terrors.New(terrors.T0203, "static member %s used with an instance", m)
	}
	if !m.Static && obj == nil {
		return terrors.New(terrors.T0203, "instance member %s used without an instance", m)
	}
	if obj != nil && m.DeclaringType != nil && !assignable(obj.Type(), m.DeclaringType) &&
		!types.Identical(types.NonNullable(obj.Type()), m.DeclaringType) {
		return terrors.New(terrors.T0003, "instance of %s is not a %s", obj.Type(), m.DeclaringType)
	}
	return nil
}

// ============================================================================
// 叶子
// ============================================================================

// NewConstant 创建常量
func NewConstant(v any, t *types.Type) (*Constant, error) {
	if t == nil {
		return nil, nilArg("constant type")
	}
	if err := types.CheckValue(v, t); err != nil {
		return nil, terrors.New(terrors.T0102, "%v", err)
	}
	return &Constant{Value: v, typ: t}, nil
}

// ConstOf 创建指定类型的常量（must 版本）
func ConstOf(v any, t *types.Type) *Constant {
	return must(NewConstant(v, t))
}

// Const 按 Go 值推断基本类型创建常量；nil 推断为 object
func Const(v any) *Constant {
	if v == nil {
		return &Constant{typ: types.ObjectType}
	}
	if t := types.DynamicType(v); t != nil {
		return &Constant{Value: v, typ: t}
	}
	panic(terrors.New(terrors.T0102, "cannot infer type of %T", v))
}

// NewDefault 创建默认值节点
func NewDefault(t *types.Type) (*Default, error) {
	if t == nil {
		return nil, nilArg("default type")
	}
	return &Default{typ: t}, nil
}

// DefaultOf 创建默认值节点（must 版本）
func DefaultOf(t *types.Type) *Default {
	return must(NewDefault(t))
}

// Empty void 类型的空表达式
func Empty() *Default {
	return &Default{typ: types.VoidType}
}

// Var 创建变量
func Var(name string, t *types.Type) *Parameter {
	if t == nil || t.Kind() == types.Void {
		panic(terrors.New(terrors.T0003, "variable %s needs a non-void type", name))
	}
	return &Parameter{Name: name, typ: t}
}

// RefVar 创建按引用参数
func RefVar(name string, t *types.Type) *Parameter {
	p := Var(name, t)
	p.ByRef = true
	return p
}

// NewRuntimeVariables 创建运行时变量列表
func NewRuntimeVariables(vars ...*Parameter) (*RuntimeVariables, error) {
	for i, v := range vars {
		if v == nil {
			return nil, nilArg(fmt.Sprintf("runtime variable %d", i))
		}
	}
	return &RuntimeVariables{Variables: vars}, nil
}

// ============================================================================
// 一元
// ============================================================================

// NewUnary 创建一元运算；typ 仅转换类运算必需，其余为 nil 时自动推断
func NewUnary(op UnaryOp, operand Node, typ *types.Type, method *types.Member) (*Unary, error) {
	if isNil(operand) {
		return nil, nilArg("unary operand")
	}
	t := operand.Type()
	if method != nil {
		if !method.Static || len(method.Params) != 1 {
			return nil, terrors.New(terrors.T0200, "unary operator method %s must be static with one parameter", method)
		}
		p := method.Params[0].Type
		res := method.Result
		switch {
		case assignable(t, p):
		case t.IsNullable() && types.Identical(types.NonNullable(t), p) && res.IsValueType():
			res = types.NullableOf(res)
		default:
			return nil, terrors.New(terrors.T0003, "%s operand %s does not match %s", op, t, method)
		}
		if typ == nil {
			typ = res
		}
		return &Unary{Op: op, Operand: operand, Method: method, typ: typ}, nil
	}
	if op.IsAssignment() && !IsLvalue(operand) {
		return nil, terrors.New(terrors.T0301, "%s operand", op)
	}
	u := types.NonNullable(t).Underlying()
	switch op {
	case Negate, NegateChecked, UnaryPlus, Increment, Decrement,
		PreIncrementAssign, PreDecrementAssign, PostIncrementAssign, PostDecrementAssign:
		if !types.IsNumeric(u) || types.IsEnum(t) {
			return nil, terrors.New(terrors.T0100, "%s is not defined for %s", op, t)
		}
		typ = t
	case Not:
		if !types.IsIntegerOrBool(u) || types.IsEnum(t) {
			return nil, terrors.New(terrors.T0100, "%s is not defined for %s", op, t)
		}
		typ = t
	case OnesComplement:
		if !types.IsInteger(u) || types.IsEnum(t) {
			return nil, terrors.New(terrors.T0100, "%s is not defined for %s", op, t)
		}
		typ = t
	case IsTrue, IsFalse:
		if u.Kind() != types.Bool {
			return nil, terrors.New(terrors.T0100, "%s is not defined for %s", op, t)
		}
		typ = t
	case ArrayLength:
		if t.Kind() != types.Array {
			return nil, terrors.New(terrors.T0100, "%s is not defined for %s", op, t)
		}
		typ = types.Int32Type
	case Convert, ConvertChecked:
		if typ == nil {
			return nil, nilArg("conversion target type")
		}
		if !Convertible(t, typ) {
			return nil, terrors.New(terrors.T0101, "%s to %s", t, typ)
		}
	case TypeAs:
		if typ == nil || !typ.CanBeNull() {
			return nil, terrors.New(terrors.T0101, "TypeAs target %s must accept null", typ)
		}
	case Unbox:
		if typ == nil || !typ.IsValueType() || t.Kind() != types.Object {
			return nil, terrors.New(terrors.T0101, "unbox %s to %s", t, typ)
		}
	default:
		return nil, terrors.New(terrors.T0100, "unknown unary operator %d", op)
	}
	return &Unary{Op: op, Operand: operand, typ: typ}, nil
}

// MakeUnary 创建一元运算（must 版本）
func MakeUnary(op UnaryOp, operand Node, typ *types.Type) *Unary {
	return must(NewUnary(op, operand, typ, nil))
}

// MakeConvert 创建类型转换（must 版本）
func MakeConvert(operand Node, to *types.Type) *Unary {
	return must(NewUnary(Convert, operand, to, nil))
}

// Convertible 判断是否存在从 from 到 to 的显式转换
func Convertible(from, to *types.Type) bool {
	if types.Identical(from, to) {
		return true
	}
	if from.Kind() == types.Void || to.Kind() == types.Void {
		return false
	}
	fu, tu := types.NonNullable(from).Underlying(), types.NonNullable(to).Underlying()
	if types.IsNumeric(fu) && types.IsNumeric(tu) {
		return true
	}
	if types.Identical(types.NonNullable(from), types.NonNullable(to)) {
		return true
	}
	if from.Kind() == types.Object || to.Kind() == types.Object {
		return true
	}
	if !from.IsValueType() && !to.IsValueType() {
		return types.IsSubclassOf(from, to) || types.IsSubclassOf(to, from)
	}
	return false
}

// ============================================================================
// 二元
// ============================================================================

type binaryConfig struct {
	method     *types.Member
	liftToNull bool
	conversion *Lambda
}

// BinaryOption 二元运算的可选参数
type BinaryOption func(*binaryConfig)

// WithMethod 指定重载运算符方法
func WithMethod(m *types.Member) BinaryOption {
	return func(c *binaryConfig) { c.method = m }
}

// WithLiftToNull 可空比较的结果为 bool?
func WithLiftToNull() BinaryOption {
	return func(c *binaryConfig) { c.liftToNull = true }
}

// WithConversion Coalesce 的转换 lambda
func WithConversion(l *Lambda) BinaryOption {
	return func(c *binaryConfig) { c.conversion = l }
}

// NewBinary 创建二元运算
func NewBinary(op BinaryOp, left, right Node, opts ...BinaryOption) (*Binary, error) {
	var cfg binaryConfig
	for _, o := range opts {
		o(&cfg)
	}
	var err error
	if isNil(left) {
		err = multierr.Append(err, nilArg("binary left operand"))
	}
	if isNil(right) {
		err = multierr.Append(err, nilArg("binary right operand"))
	}
	if err != nil {
		return nil, err
	}
	typ, err := binaryType(op, left, right, &cfg)
	if err != nil {
		return nil, err
	}
	return &Binary{Op: op, Left: left, Right: right, Method: cfg.method, LiftToNull: cfg.liftToNull, Conversion: cfg.conversion, typ: typ}, nil
}

// MakeBinary 创建二元运算（must 版本）
func MakeBinary(op BinaryOp, left, right Node, opts ...BinaryOption) *Binary {
	return must(NewBinary(op, left, right, opts...))
}

func binaryType(op BinaryOp, left, right Node, cfg *binaryConfig) (*types.Type, error) {
	l, r := left.Type(), right.Type()
	bad := func() error {
		return terrors.New(terrors.T0100, "%s is not defined for %s and %s", op, l, r)
	}

	if op.IsAssignment() && !IsLvalue(left) {
		return nil, terrors.New(terrors.T0301, "%s target", op)
	}
	if op == Assign {
		if !assignable(r, l) {
			return nil, bad()
		}
		return l, nil
	}

	if m := cfg.method; m != nil {
		if !m.Static || len(m.Params) != 2 {
			return nil, terrors.New(terrors.T0200, "binary operator method %s must be static with two parameters", m)
		}
		pl, pr := m.Params[0].Type, m.Params[1].Type
		if assignable(l, pl) && assignable(r, pr) {
			if op.IsCompoundAssignment() && !assignable(m.Result, l) {
				return nil, bad()
			}
			return m.Result, nil
		}
		// 提升的重载运算符
		if types.Identical(types.NonNullable(l), pl) && types.Identical(types.NonNullable(r), pr) &&
			pl.IsValueType() && pr.IsValueType() && m.Result.IsValueType() {
			if op.IsComparison() {
				if cfg.liftToNull {
					return types.NullableOf(m.Result), nil
				}
				return m.Result, nil
			}
			return types.NullableOf(m.Result), nil
		}
		return nil, bad()
	}

	base := op.Underlying()
	if op.IsCompoundAssignment() {
		t, err := builtinBinaryType(base, l, r, cfg.liftToNull)
		if err != nil {
			return nil, err
		}
		if !types.Identical(t, l) {
			return nil, bad()
		}
		return t, nil
	}
	switch op {
	case Coalesce:
		if !l.CanBeNull() {
			return nil, bad()
		}
		if cfg.conversion != nil {
			c := cfg.conversion
			if len(c.Parameters) != 1 || !assignable(types.NonNullable(l), c.Parameters[0].Type()) && !assignable(l, c.Parameters[0].Type()) {
				return nil, terrors.New(terrors.T0300, "coalesce conversion must take one %s parameter", l)
			}
			if !assignable(r, c.ReturnType()) {
				return nil, bad()
			}
			return r, nil
		}
		if l.IsNullable() && assignable(r, types.NonNullable(l)) {
			return types.NonNullable(l), nil
		}
		if assignable(r, l) {
			return l, nil
		}
		if assignable(types.NonNullable(l), r) {
			return r, nil
		}
		return nil, bad()
	case ArrayIndex:
		if l.Kind() != types.Array || r.Kind() != types.Int32 {
			return nil, bad()
		}
		return l.Elem(), nil
	}
	return builtinBinaryType(op, l, r, cfg.liftToNull)
}

func builtinBinaryType(op BinaryOp, l, r *types.Type, liftToNull bool) (*types.Type, error) {
	bad := terrors.New(terrors.T0100, "%s is not defined for %s and %s", op, l, r)
	lu, ru := types.NonNullable(l).Underlying(), types.NonNullable(r).Underlying()
	lifted := l.IsNullable() || r.IsNullable()
	switch {
	case op == AndAlso || op == OrElse:
		if !types.Identical(l, r) || lu.Kind() != types.Bool {
			return nil, bad
		}
		return l, nil
	case op == Power:
		if !types.Identical(l, r) || lu.Kind() != types.Float64 {
			return nil, bad
		}
		return l, nil
	case op.IsShift():
		if !types.IsInteger(lu) || types.IsEnum(l) || ru.Kind() != types.Int32 {
			return nil, bad
		}
		if r.IsNullable() {
			return types.NullableOf(l), nil
		}
		return l, nil
	case op.IsBitwise():
		if !types.Identical(l, r) || !types.IsIntegerOrBool(lu) {
			return nil, bad
		}
		return l, nil
	case op.IsArithmetic():
		if !types.Identical(l, r) || !types.IsNumeric(lu) || types.IsEnum(l) {
			return nil, bad
		}
		return l, nil
	case op == Equal || op == NotEqual:
		if !types.Identical(l, r) && !(!l.IsValueType() && !r.IsValueType() && (assignable(l, r) || assignable(r, l))) {
			return nil, bad
		}
	case op.IsRelational():
		if !types.Identical(l, r) || !types.IsNumeric(lu) {
			return nil, bad
		}
	default:
		return nil, bad
	}
	if lifted && liftToNull && l.IsValueType() {
		return types.NullableOf(types.BoolType), nil
	}
	return types.BoolType, nil
}

// NewTypeBinary 创建类型测试
func NewTypeBinary(op TypeBinaryOp, operand Node, t *types.Type) (*TypeBinary, error) {
	if isNil(operand) || t == nil {
		return nil, nilArg("type test operand")
	}
	return &TypeBinary{Op: op, Operand: operand, TypeOperand: t}, nil
}

// MakeTypeIs 创建 x is T（must 版本）
func MakeTypeIs(operand Node, t *types.Type) *TypeBinary {
	return must(NewTypeBinary(TypeIs, operand, t))
}

// ============================================================================
// 控制流
// ============================================================================

// NewBlock 创建语句块；typ 为 nil 时取最后一个表达式的类型
func NewBlock(typ *types.Type, vars []*Parameter, exprs []Node) (*Block, error) {
	if len(exprs) == 0 {
		return nil, terrors.New(terrors.T0002, "block needs at least one expression")
	}
	var err error
	for i, e := range exprs {
		if isNil(e) {
			err = multierr.Append(err, nilArg(fmt.Sprintf("block expression %d", i)))
		}
	}
	seen := make(map[*Parameter]bool, len(vars))
	for _, v := range vars {
		if v == nil {
			err = multierr.Append(err, nilArg("block variable"))
			continue
		}
		if seen[v] {
			err = multierr.Append(err, terrors.New(terrors.T0003, "variable %s declared twice", v.Name))
		}
		seen[v] = true
	}
	if err != nil {
		return nil, err
	}
	last := exprs[len(exprs)-1].Type()
	if typ == nil {
		typ = last
	} else if typ.Kind() != types.Void && !assignable(last, typ) {
		return nil, terrors.New(terrors.T0103, "%s is not assignable to %s", last, typ)
	}
	return &Block{Variables: vars, Expressions: exprs, typ: typ}, nil
}

// MakeBlock 创建语句块（must 版本）
func MakeBlock(vars []*Parameter, exprs ...Node) *Block {
	return must(NewBlock(nil, vars, exprs))
}

// MakeTypedBlock 创建指定类型的语句块（must 版本）
func MakeTypedBlock(typ *types.Type, vars []*Parameter, exprs ...Node) *Block {
	return must(NewBlock(typ, vars, exprs))
}

// NewConditional 创建条件表达式
func NewConditional(test, ifTrue, ifFalse Node, typ *types.Type) (*Conditional, error) {
	if isNil(test) || isNil(ifTrue) || isNil(ifFalse) {
		return nil, nilArg("conditional operand")
	}
	if test.Type().Kind() != types.Bool {
		return nil, terrors.New(terrors.T0003, "condition must be bool, got %s", test.Type())
	}
	if typ == nil {
		if !types.Identical(ifTrue.Type(), ifFalse.Type()) {
			return nil, terrors.New(terrors.T0003, "branches %s and %s differ", ifTrue.Type(), ifFalse.Type())
		}
		typ = ifTrue.Type()
	} else if typ.Kind() != types.Void && (!assignable(ifTrue.Type(), typ) || !assignable(ifFalse.Type(), typ)) {
		return nil, terrors.New(terrors.T0003, "branches are not assignable to %s", typ)
	}
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse, typ: typ}, nil
}

// MakeCondition 创建条件表达式（must 版本）
func MakeCondition(test, ifTrue, ifFalse Node) *Conditional {
	return must(NewConditional(test, ifTrue, ifFalse, nil))
}

// NewCatch 创建 catch 子句；variable 可为 nil
func NewCatch(test *types.Type, variable *Parameter, filter, body Node) (*CatchBlock, error) {
	if variable != nil {
		test = variable.Type()
	}
	if test == nil || isNil(body) {
		return nil, nilArg("catch type or body")
	}
	if filter != nil && filter.Type().Kind() != types.Bool {
		return nil, terrors.New(terrors.T0003, "catch filter must be bool")
	}
	return &CatchBlock{Test: test, Variable: variable, Filter: filter, Body: body}, nil
}

// MakeCatch 创建 catch 子句（must 版本）
func MakeCatch(test *types.Type, variable *Parameter, body Node) *CatchBlock {
	return must(NewCatch(test, variable, nil, body))
}

// NewTry 创建 try 表达式；typ 为 nil 时取 body 类型
func NewTry(typ *types.Type, body Node, finally, fault Node, handlers ...*CatchBlock) (*Try, error) {
	if isNil(body) {
		return nil, nilArg("try body")
	}
	if fault != nil && len(handlers) > 0 {
		return nil, terrors.New(terrors.T0300, "fault cannot be combined with catch handlers")
	}
	if typ == nil {
		typ = body.Type()
	}
	var err error
	if typ.Kind() != types.Void && !assignable(body.Type(), typ) {
		err = multierr.Append(err, terrors.New(terrors.T0003, "try body %s is not assignable to %s", body.Type(), typ))
	}
	for i, h := range handlers {
		if h == nil {
			err = multierr.Append(err, nilArg(fmt.Sprintf("handler %d", i)))
			continue
		}
		if typ.Kind() != types.Void && !assignable(h.Body.Type(), typ) {
			err = multierr.Append(err, terrors.New(terrors.T0003, "handler %d body %s is not assignable to %s", i, h.Body.Type(), typ))
		}
	}
	if err != nil {
		return nil, err
	}
	return &Try{Body: body, Handlers: handlers, Finally: finally, Fault: fault, typ: typ}, nil
}

// MakeTryCatch 创建 try/catch（must 版本）
func MakeTryCatch(body Node, handlers ...*CatchBlock) *Try {
	return must(NewTry(nil, body, nil, nil, handlers...))
}

// MakeTryFinally 创建 try/finally（must 版本）
func MakeTryFinally(body, finally Node) *Try {
	return must(NewTry(nil, body, finally, nil))
}

// NewThrow 创建 throw；value 为 nil 表示 rethrow，typ 为 nil 时为 void
func NewThrow(value Node, typ *types.Type) (*Throw, error) {
	if typ == nil {
		typ = types.VoidType
	}
	if value != nil && value.Type().IsValueType() {
		return nil, terrors.New(terrors.T0003, "throw operand must be a reference type, got %s", value.Type())
	}
	return &Throw{Value: value, typ: typ}, nil
}

// MakeThrow 创建 throw（must 版本）
func MakeThrow(value Node, typ *types.Type) *Throw {
	return must(NewThrow(value, typ))
}

// MakeRethrow 创建 rethrow
func MakeRethrow(typ *types.Type) *Throw {
	return must(NewThrow(nil, typ))
}

// NewLabelTarget 创建跳转目标
func NewLabelTarget(name string, t *types.Type) *LabelTarget {
	if t == nil {
		t = types.VoidType
	}
	return &LabelTarget{Name: name, Type: t}
}

// NewLabel 创建标签
func NewLabel(target *LabelTarget, def Node) (*Label, error) {
	if target == nil {
		return nil, nilArg("label target")
	}
	if target.Type.Kind() != types.Void {
		if def == nil {
			return nil, terrors.New(terrors.T0003, "label %s needs a default value", target.Name)
		}
		if !assignable(def.Type(), target.Type) {
			return nil, terrors.New(terrors.T0003, "label default %s is not assignable to %s", def.Type(), target.Type)
		}
	}
	return &Label{Target: target, Default: def}, nil
}

// NewGoto 创建跳转
func NewGoto(kind GotoKind, target *LabelTarget, value Node, typ *types.Type) (*Goto, error) {
	if target == nil {
		return nil, nilArg("goto target")
	}
	if typ == nil {
		typ = types.VoidType
	}
	if target.Type.Kind() == types.Void {
		if value != nil {
			return nil, terrors.New(terrors.T0003, "jump to void label %s carries a value", target.Name)
		}
	} else if value == nil || !assignable(value.Type(), target.Type) {
		return nil, terrors.New(terrors.T0003, "jump to %s needs a %s value", target.Name, target.Type)
	}
	return &Goto{GotoKind: kind, Target: target, Value: value, typ: typ}, nil
}

// NewLoop 创建循环
func NewLoop(body Node, brk, cont *LabelTarget) (*Loop, error) {
	if isNil(body) {
		return nil, nilArg("loop body")
	}
	if cont != nil && cont.Type.Kind() != types.Void {
		return nil, terrors.New(terrors.T0003, "continue label must be void")
	}
	return &Loop{Body: body, Break: brk, Continue: cont}, nil
}

// NewSwitchCase 创建 switch 分支
func NewSwitchCase(body Node, tests ...Node) (*SwitchCase, error) {
	if isNil(body) || len(tests) == 0 {
		return nil, nilArg("switch case body or test values")
	}
	return &SwitchCase{TestValues: tests, Body: body}, nil
}

// NewSwitch 创建 switch；typ 为 nil 时取第一个分支体的类型
func NewSwitch(typ *types.Type, value Node, def Node, comparison *types.Member, cases ...*SwitchCase) (*Switch, error) {
	if isNil(value) {
		return nil, nilArg("switch value")
	}
	if value.Type().Kind() == types.Void {
		return nil, terrors.New(terrors.T0003, "switch value must not be void")
	}
	if typ == nil {
		switch {
		case len(cases) > 0:
			typ = cases[0].Body.Type()
		case def != nil:
			typ = def.Type()
		default:
			typ = types.VoidType
		}
	}
	var err error
	for i, c := range cases {
		if c == nil {
			err = multierr.Append(err, nilArg(fmt.Sprintf("switch case %d", i)))
			continue
		}
		for _, tv := range c.TestValues {
			if comparison == nil && !types.Identical(tv.Type(), value.Type()) {
				err = multierr.Append(err, terrors.New(terrors.T0003, "case %d test value %s does not match %s", i, tv.Type(), value.Type()))
			}
		}
		if typ.Kind() != types.Void && !assignable(c.Body.Type(), typ) {
			err = multierr.Append(err, terrors.New(terrors.T0003, "case %d body %s is not assignable to %s", i, c.Body.Type(), typ))
		}
	}
	if def != nil && typ.Kind() != types.Void && !assignable(def.Type(), typ) {
		err = multierr.Append(err, terrors.New(terrors.T0003, "default body %s is not assignable to %s", def.Type(), typ))
	}
	if err != nil {
		return nil, err
	}
	return &Switch{SwitchValue: value, Cases: cases, Default: def, Comparison: comparison, typ: typ}, nil
}

// ============================================================================
// 函数
// ============================================================================

// NewLambda 创建 lambda
func NewLambda(body Node, params ...*Parameter) (*Lambda, error) {
	if isNil(body) {
		return nil, nilArg("lambda body")
	}
	ptypes := make([]*types.Type, len(params))
	seen := make(map[*Parameter]bool, len(params))
	for i, p := range params {
		if p == nil {
			return nil, nilArg(fmt.Sprintf("lambda parameter %d", i))
		}
		if seen[p] {
			return nil, terrors.New(terrors.T0003, "parameter %s declared twice", p.Name)
		}
		seen[p] = true
		ptypes[i] = p.Type()
	}
	return &Lambda{Parameters: params, Body: body, typ: types.FuncOf(ptypes, body.Type())}, nil
}

// MakeLambda 创建 lambda（must 版本）
func MakeLambda(body Node, params ...*Parameter) *Lambda {
	return must(NewLambda(body, params...))
}

// NewInvocation 创建调用
func NewInvocation(fn Node, args ...Node) (*Invocation, error) {
	if isNil(fn) {
		return nil, nilArg("invocation target")
	}
	ft := fn.Type()
	if ft.Kind() != types.Func {
		return nil, terrors.New(terrors.T0003, "cannot invoke %s", ft)
	}
	params := make([]types.ParamInfo, len(ft.Params()))
	for i, p := range ft.Params() {
		params[i] = types.ParamInfo{Type: p}
	}
	if l, ok := fn.(*Lambda); ok {
		for i, p := range l.Parameters {
			params[i].ByRef = p.ByRef
		}
	}
	if err := checkArgs("invocation", params, args); err != nil {
		return nil, err
	}
	return &Invocation{Expression: fn, Arguments: args, typ: ft.Result()}, nil
}

// MakeInvoke 创建调用（must 版本）
func MakeInvoke(fn Node, args ...Node) *Invocation {
	return must(NewInvocation(fn, args...))
}

// NewQuote 创建引用
func NewQuote(l *Lambda) (*Quote, error) {
	if l == nil {
		return nil, nilArg("quoted lambda")
	}
	return &Quote{Operand: l}, nil
}

// ============================================================================
// 成员与对象
// ============================================================================

// NewCall 创建方法调用；静态方法 obj 为 nil
func NewCall(obj Node, m *types.Member, args ...Node) (*Call, error) {
	if m == nil {
		return nil, nilArg("method")
	}
	if m.Kind != types.MethodMember {
		return nil, terrors.New(terrors.T0200, "%s is a %s, not a method", m, m.Kind)
	}
	if m.IsOpenGeneric() && m.Template == nil && len(m.TypeParams) > 0 {
		return nil, terrors.New(terrors.T0200, "open generic method %s must be instantiated", m)
	}
	err := multierr.Append(checkInstance(m, obj), checkArgs(m.Name, m.Params, args))
	if err != nil {
		return nil, err
	}
	return &Call{Object: obj, Method: m, Arguments: args}, nil
}

// MakeCall 创建方法调用（must 版本）
func MakeCall(obj Node, m *types.Member, args ...Node) *Call {
	return must(NewCall(obj, m, args...))
}

// NewMemberAccess 创建字段/属性访问
func NewMemberAccess(obj Node, m *types.Member) (*MemberAccess, error) {
	if m == nil {
		return nil, nilArg("member")
	}
	if m.Kind != types.FieldMember && m.Kind != types.PropertyMember {
		return nil, terrors.New(terrors.T0200, "%s is not a field or property", m)
	}
	if len(m.Params) > 0 {
		if m.Static {
			return nil, terrors.New(terrors.T0200, "static indexed property %s", m)
		}
		return nil, terrors.New(terrors.T0200, "indexed property %s needs an Index node", m)
	}
	if err := checkInstance(m, obj); err != nil {
		return nil, err
	}
	return &MemberAccess{Object: obj, Member: m}, nil
}

// MakeMember 创建字段/属性访问（must 版本）
func MakeMember(obj Node, m *types.Member) *MemberAccess {
	return must(NewMemberAccess(obj, m))
}

// NewIndex 创建索引访问；indexer 为 nil 时为数组访问
func NewIndex(obj Node, indexer *types.Member, args ...Node) (*Index, error) {
	if isNil(obj) {
		return nil, nilArg("indexed object")
	}
	if indexer == nil {
		if obj.Type().Kind() != types.Array {
			return nil, terrors.New(terrors.T0100, "cannot index %s", obj.Type())
		}
		if err := checkArgs("array index", []types.ParamInfo{{Type: types.Int32Type}}, args); err != nil {
			return nil, err
		}
		return &Index{Object: obj, Arguments: args}, nil
	}
	if indexer.Kind != types.PropertyMember || len(indexer.Params) == 0 {
		return nil, terrors.New(terrors.T0200, "%s is not an indexer", indexer)
	}
	if indexer.Static {
		return nil, terrors.New(terrors.T0200, "static indexed property %s", indexer)
	}
	err := multierr.Append(checkInstance(indexer, obj), checkArgs(indexer.Name, indexer.Params, args))
	if err != nil {
		return nil, err
	}
	return &Index{Object: obj, Indexer: indexer, Arguments: args}, nil
}

// MakeIndex 创建索引访问（must 版本）
func MakeIndex(obj Node, indexer *types.Member, args ...Node) *Index {
	return must(NewIndex(obj, indexer, args...))
}

// NewNew 创建对象
func NewNew(ctor *types.Member, args ...Node) (*New, error) {
	if ctor == nil {
		return nil, nilArg("constructor")
	}
	if ctor.Kind != types.ConstructorMember {
		return nil, terrors.New(terrors.T0200, "%s is not a constructor", ctor)
	}
	if err := checkArgs("constructor of "+ctor.DeclaringType.String(), ctor.Params, args); err != nil {
		return nil, err
	}
	return &New{Constructor: ctor, Arguments: args, typ: ctor.DeclaringType}, nil
}

// MakeNew 创建对象（must 版本）
func MakeNew(ctor *types.Member, args ...Node) *New {
	return must(NewNew(ctor, args...))
}

// NewValue 创建值类型默认实例（无构造函数）
func NewValue(t *types.Type) (*New, error) {
	if t == nil || !t.IsValueType() {
		return nil, terrors.New(terrors.T0003, "parameterless New needs a value type, got %s", t)
	}
	return &New{typ: t}, nil
}

// NewArrayInit 创建带初始元素的数组
func NewArrayInit(elem *types.Type, exprs ...Node) (*NewArray, error) {
	if elem == nil {
		return nil, nilArg("array element type")
	}
	var err error
	for i, e := range exprs {
		if isNil(e) {
			err = multierr.Append(err, nilArg(fmt.Sprintf("array element %d", i)))
		} else if !assignable(e.Type(), elem) {
			err = multierr.Append(err, terrors.New(terrors.T0003, "array element %d: %s is not assignable to %s", i, e.Type(), elem))
		}
	}
	if err != nil {
		return nil, err
	}
	return &NewArray{Expressions: exprs, typ: types.ArrayOf(elem)}, nil
}

// MakeArrayInit 创建带初始元素的数组（must 版本）
func MakeArrayInit(elem *types.Type, exprs ...Node) *NewArray {
	return must(NewArrayInit(elem, exprs...))
}

// NewArrayBounds 创建指定长度的一维数组
func NewArrayBounds(elem *types.Type, bounds ...Node) (*NewArray, error) {
	if elem == nil {
		return nil, nilArg("array element type")
	}
	if len(bounds) != 1 {
		return nil, terrors.New(terrors.T0002, "only single-dimensional arrays are supported, got rank %d", len(bounds))
	}
	if isNil(bounds[0]) || !types.IsInteger(bounds[0].Type()) {
		return nil, terrors.New(terrors.T0003, "array bound must be an integer")
	}
	return &NewArray{Bounds: true, Expressions: bounds, typ: types.ArrayOf(elem)}, nil
}

// MakeArrayBounds 创建指定长度的数组（must 版本）
func MakeArrayBounds(elem *types.Type, bound Node) *NewArray {
	return must(NewArrayBounds(elem, bound))
}

// NewElementInit 创建集合初始化项
func NewElementInit(add *types.Member, args ...Node) (*ElementInit, error) {
	if add == nil {
		return nil, nilArg("Add method")
	}
	if add.Static || add.Kind != types.MethodMember {
		return nil, terrors.New(terrors.T0200, "%s must be an instance method", add)
	}
	if err := checkArgs(add.Name, add.Params, args); err != nil {
		return nil, err
	}
	return &ElementInit{AddMethod: add, Arguments: args}, nil
}

// NewListInit 创建集合初始化
func NewListInit(newExpr *New, inits ...*ElementInit) (*ListInit, error) {
	if newExpr == nil {
		return nil, nilArg("list initializer constructor")
	}
	if len(inits) == 0 {
		return nil, terrors.New(terrors.T0002, "list initializer needs at least one element")
	}
	return &ListInit{NewExpr: newExpr, Initializers: inits}, nil
}

// Bind 成员赋值绑定
func Bind(m *types.Member, expr Node) *MemberBinding {
	return &MemberBinding{BindingKind: BindAssignment, Member: m, Expression: expr}
}

// BindMembers 嵌套成员绑定
func BindMembers(m *types.Member, bindings ...*MemberBinding) *MemberBinding {
	return &MemberBinding{BindingKind: BindMember, Member: m, Bindings: bindings}
}

// ListBinding 成员集合绑定
func ListBinding(m *types.Member, inits ...*ElementInit) *MemberBinding {
	return &MemberBinding{BindingKind: BindList, Member: m, Initializers: inits}
}

// NewMemberInit 创建对象初始化
func NewMemberInit(newExpr *New, bindings ...*MemberBinding) (*MemberInit, error) {
	if newExpr == nil {
		return nil, nilArg("member initializer constructor")
	}
	var err error
	for i, b := range bindings {
		if b == nil || b.Member == nil {
			err = multierr.Append(err, nilArg(fmt.Sprintf("binding %d", i)))
			continue
		}
		if b.BindingKind == BindAssignment {
			if isNil(b.Expression) {
				err = multierr.Append(err, nilArg(fmt.Sprintf("binding %d expression", i)))
			} else if !assignable(b.Expression.Type(), b.Member.Result) {
				err = multierr.Append(err, terrors.New(terrors.T0003, "binding %s: %s is not assignable to %s", b.Member.Name, b.Expression.Type(), b.Member.Result))
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return &MemberInit{NewExpr: newExpr, Bindings: bindings}, nil
}

// NewDynamic 创建动态调用
func NewDynamic(binder *types.Member, args ...Node) (*Dynamic, error) {
	if binder == nil || binder.Result == nil {
		return nil, nilArg("dynamic binder")
	}
	if err := checkArgs("dynamic "+binder.Name, binder.Params, args); err != nil {
		return nil, err
	}
	return &Dynamic{Binder: binder, Arguments: args}, nil
}

// WithType 返回类型为 t 的同一 throw；类型相同返回自身
func (n *Throw) WithType(t *types.Type) *Throw {
	if types.Identical(t, n.typ) {
		return n
	}
	return &Throw{Value: n.Value, typ: t}
}
