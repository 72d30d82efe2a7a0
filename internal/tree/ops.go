package tree

// ============================================================================
// 一元运算符
// ============================================================================

// UnaryOp 一元运算符
type UnaryOp uint8

const (
	Negate UnaryOp = iota
	NegateChecked
	UnaryPlus
	Not // 按位取反；对 bool 即逻辑非
	OnesComplement
	IsTrue
	IsFalse
	Convert
	ConvertChecked
	TypeAs
	ArrayLength
	Unbox
	Increment
	Decrement
	PreIncrementAssign
	PreDecrementAssign
	PostIncrementAssign
	PostDecrementAssign
)

var unaryNames = [...]string{
	Negate:              "Negate",
	NegateChecked:       "NegateChecked",
	UnaryPlus:           "UnaryPlus",
	Not:                 "Not",
	OnesComplement:      "OnesComplement",
	IsTrue:              "IsTrue",
	IsFalse:             "IsFalse",
	Convert:             "Convert",
	ConvertChecked:      "ConvertChecked",
	TypeAs:              "TypeAs",
	ArrayLength:         "ArrayLength",
	Unbox:               "Unbox",
	Increment:           "Increment",
	Decrement:           "Decrement",
	PreIncrementAssign:  "PreIncrementAssign",
	PreDecrementAssign:  "PreDecrementAssign",
	PostIncrementAssign: "PostIncrementAssign",
	PostDecrementAssign: "PostDecrementAssign",
}

func (op UnaryOp) String() string {
	if int(op) < len(unaryNames) {
		return unaryNames[op]
	}
	return "Unary?"
}

// IsAssignment 是否写回操作数
func (op UnaryOp) IsAssignment() bool {
	return op >= PreIncrementAssign && op <= PostDecrementAssign
}

// IsConversion 是否为类型转换
func (op UnaryOp) IsConversion() bool {
	return op == Convert || op == ConvertChecked || op == TypeAs || op == Unbox
}

// ============================================================================
// 二元运算符
// ============================================================================

// BinaryOp 二元运算符
type BinaryOp uint8

const (
	Add BinaryOp = iota
	AddChecked
	Subtract
	SubtractChecked
	Multiply
	MultiplyChecked
	Divide
	Modulo
	Power
	And
	Or
	ExclusiveOr
	LeftShift
	RightShift
	AndAlso
	OrElse
	Equal
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	Coalesce
	ArrayIndex
	Assign
	AddAssign
	AddAssignChecked
	SubtractAssign
	SubtractAssignChecked
	MultiplyAssign
	MultiplyAssignChecked
	DivideAssign
	ModuloAssign
	PowerAssign
	AndAssign
	OrAssign
	ExclusiveOrAssign
	LeftShiftAssign
	RightShiftAssign
)

var binaryNames = [...]string{
	Add:                   "Add",
	AddChecked:            "AddChecked",
	Subtract:              "Subtract",
	SubtractChecked:       "SubtractChecked",
	Multiply:              "Multiply",
	MultiplyChecked:       "MultiplyChecked",
	Divide:                "Divide",
	Modulo:                "Modulo",
	Power:                 "Power",
	And:                   "And",
	Or:                    "Or",
	ExclusiveOr:           "ExclusiveOr",
	LeftShift:             "LeftShift",
	RightShift:            "RightShift",
	AndAlso:               "AndAlso",
	OrElse:                "OrElse",
	Equal:                 "Equal",
	NotEqual:              "NotEqual",
	LessThan:              "LessThan",
	LessThanOrEqual:       "LessThanOrEqual",
	GreaterThan:           "GreaterThan",
	GreaterThanOrEqual:    "GreaterThanOrEqual",
	Coalesce:              "Coalesce",
	ArrayIndex:            "ArrayIndex",
	Assign:                "Assign",
	AddAssign:             "AddAssign",
	AddAssignChecked:      "AddAssignChecked",
	SubtractAssign:        "SubtractAssign",
	SubtractAssignChecked: "SubtractAssignChecked",
	MultiplyAssign:        "MultiplyAssign",
	MultiplyAssignChecked: "MultiplyAssignChecked",
	DivideAssign:          "DivideAssign",
	ModuloAssign:          "ModuloAssign",
	PowerAssign:           "PowerAssign",
	AndAssign:             "AndAssign",
	OrAssign:              "OrAssign",
	ExclusiveOrAssign:     "ExclusiveOrAssign",
	LeftShiftAssign:       "LeftShiftAssign",
	RightShiftAssign:      "RightShiftAssign",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return "Binary?"
}

var binarySymbols = map[BinaryOp]string{
	Add: "+", AddChecked: "+", Subtract: "-", SubtractChecked: "-",
	Multiply: "*", MultiplyChecked: "*", Divide: "/", Modulo: "%", Power: "**",
	And: "&", Or: "|", ExclusiveOr: "^", LeftShift: "<<", RightShift: ">>",
	AndAlso: "&&", OrElse: "||", Equal: "==", NotEqual: "!=",
	LessThan: "<", LessThanOrEqual: "<=", GreaterThan: ">", GreaterThanOrEqual: ">=",
	Coalesce: "??", Assign: "=",
	AddAssign: "+=", AddAssignChecked: "+=", SubtractAssign: "-=", SubtractAssignChecked: "-=",
	MultiplyAssign: "*=", MultiplyAssignChecked: "*=", DivideAssign: "/=", ModuloAssign: "%=",
	PowerAssign: "**=", AndAssign: "&=", OrAssign: "|=", ExclusiveOrAssign: "^=",
	LeftShiftAssign: "<<=", RightShiftAssign: ">>=",
}

// Symbol 运算符的中缀记号
func (op BinaryOp) Symbol() string {
	if s, ok := binarySymbols[op]; ok {
		return s
	}
	return op.String()
}

// IsAssignment 是否为赋值（含复合赋值）
func (op BinaryOp) IsAssignment() bool {
	return op >= Assign
}

// IsCompoundAssignment 是否为复合赋值
func (op BinaryOp) IsCompoundAssignment() bool {
	return op > Assign
}

// Underlying 复合赋值对应的基本运算符
func (op BinaryOp) Underlying() BinaryOp {
	switch op {
	case AddAssign:
		return Add
	case AddAssignChecked:
		return AddChecked
	case SubtractAssign:
		return Subtract
	case SubtractAssignChecked:
		return SubtractChecked
	case MultiplyAssign:
		return Multiply
	case MultiplyAssignChecked:
		return MultiplyChecked
	case DivideAssign:
		return Divide
	case ModuloAssign:
		return Modulo
	case PowerAssign:
		return Power
	case AndAssign:
		return And
	case OrAssign:
		return Or
	case ExclusiveOrAssign:
		return ExclusiveOr
	case LeftShiftAssign:
		return LeftShift
	case RightShiftAssign:
		return RightShift
	}
	return op
}

// IsComparison 是否为比较运算
func (op BinaryOp) IsComparison() bool {
	return op >= Equal && op <= GreaterThanOrEqual
}

// IsRelational 是否为大小比较
func (op BinaryOp) IsRelational() bool {
	return op >= LessThan && op <= GreaterThanOrEqual
}

// IsArithmetic 是否为算术运算
func (op BinaryOp) IsArithmetic() bool {
	return op <= Power
}

// IsBitwise 是否为位运算
func (op BinaryOp) IsBitwise() bool {
	return op == And || op == Or || op == ExclusiveOr
}

// IsShift 是否为移位
func (op BinaryOp) IsShift() bool {
	return op == LeftShift || op == RightShift
}

// IsShortCircuit 右操作数是否条件求值
func (op BinaryOp) IsShortCircuit() bool {
	return op == AndAlso || op == OrElse || op == Coalesce
}

// IsChecked 是否为溢出检查运算
func (op BinaryOp) IsChecked() bool {
	switch op {
	case AddChecked, SubtractChecked, MultiplyChecked,
		AddAssignChecked, SubtractAssignChecked, MultiplyAssignChecked:
		return true
	}
	return false
}

// Negated 比较运算的补运算（!(a op b) == a neg b，仅对整数成立的由调用方判断）
func (op BinaryOp) Negated() BinaryOp {
	switch op {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case LessThan:
		return GreaterThanOrEqual
	case GreaterThanOrEqual:
		return LessThan
	case GreaterThan:
		return LessThanOrEqual
	case LessThanOrEqual:
		return GreaterThan
	}
	return op
}

// Swapped 交换操作数后等价的比较运算
func (op BinaryOp) Swapped() BinaryOp {
	switch op {
	case LessThan:
		return GreaterThan
	case GreaterThan:
		return LessThan
	case LessThanOrEqual:
		return GreaterThanOrEqual
	case GreaterThanOrEqual:
		return LessThanOrEqual
	}
	return op
}

// ============================================================================
// 其他枚举
// ============================================================================

// GotoKind 跳转种类
type GotoKind uint8

const (
	GotoJump GotoKind = iota
	GotoReturn
	GotoBreak
	GotoContinue
)

func (k GotoKind) String() string {
	switch k {
	case GotoReturn:
		return "return"
	case GotoBreak:
		return "break"
	case GotoContinue:
		return "continue"
	}
	return "goto"
}

// TypeBinaryOp 类型测试运算
type TypeBinaryOp uint8

const (
	TypeIs TypeBinaryOp = iota
	TypeEqual
)

func (op TypeBinaryOp) String() string {
	if op == TypeEqual {
		return "TypeEqual"
	}
	return "TypeIs"
}

// BindingKind 成员初始化绑定种类
type BindingKind uint8

const (
	BindAssignment BindingKind = iota
	BindMember
	BindList
)
