package types

// IsValueType 是否为值类型（不能为 null，Nullable 除外）
func (t *Type) IsValueType() bool {
	switch t.kind {
	case Bool, Char, Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64,
		Float32, Float64, Nullable, Struct, Enum:
		return true
	}
	return false
}

// IsNullable 是否为 Nullable<T>
func (t *Type) IsNullable() bool { return t.kind == Nullable }

// CanBeNull 该类型的值是否可能为 null
func (t *Type) CanBeNull() bool {
	if t.kind == Void {
		return false
	}
	return t.kind == Nullable || !t.IsValueType()
}

// NonNullable 去掉一层 Nullable
func NonNullable(t *Type) *Type {
	if t.kind == Nullable {
		return t.elem
	}
	return t
}

// IsInteger 是否为整数类型（不含 bool、char、枚举）
func IsInteger(t *Type) bool {
	switch t.kind {
	case Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64:
		return true
	}
	return false
}

// IsIntegerOrBool 整数或 bool，位运算恒等式在这些类型上成立
func IsIntegerOrBool(t *Type) bool {
	return t.kind == Bool || IsInteger(t)
}

// IsFloat 是否为浮点类型
func IsFloat(t *Type) bool {
	return t.kind == Float32 || t.kind == Float64
}

// IsNumeric 是否为数值类型（含 char）
func IsNumeric(t *Type) bool {
	return IsInteger(t) || IsFloat(t) || t.kind == Char
}

// IsSigned 是否为有符号数值类型
func IsSigned(t *Type) bool {
	switch t.kind {
	case Int8, Int16, Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// IsEnum 是否为枚举（或可空枚举）
func IsEnum(t *Type) bool {
	return NonNullable(t).kind == Enum
}

// IsPrimitive 是否为基本类型（含可空基本类型时传入 NonNullable）
func IsPrimitive(t *Type) bool {
	return t.kind.IsPrimitive()
}

// BitSize 整数类型的位宽
func BitSize(t *Type) int {
	switch t.Underlying().kind {
	case Bool:
		return 1
	case Int8, Uint8:
		return 8
	case Int16, Uint16, Char:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64:
		return 64
	}
	return 0
}

// IsException 是否为异常类
func IsException(t *Type) bool {
	return t.kind == Class && IsSubclassOf(t, ExceptionType)
}
