package types

import (
	"fmt"
)

// ============================================================================
// 异常类型
// ============================================================================

// 预定义异常类
var (
	ExceptionType                 = NewClass("Exception", nil)
	ArgumentExceptionType         = NewClass("ArgumentException", ExceptionType)
	ArgumentNullExceptionType     = NewClass("ArgumentNullException", ArgumentExceptionType)
	ArithmeticExceptionType       = NewClass("ArithmeticException", ExceptionType)
	OverflowExceptionType         = NewClass("OverflowException", ArithmeticExceptionType)
	DivideByZeroExceptionType     = NewClass("DivideByZeroException", ArithmeticExceptionType)
	InvalidCastExceptionType      = NewClass("InvalidCastException", ExceptionType)
	NullReferenceExceptionType    = NewClass("NullReferenceException", ExceptionType)
	InvalidOperationExceptionType = NewClass("InvalidOperationException", ExceptionType)
	IndexOutOfRangeExceptionType  = NewClass("IndexOutOfRangeException", ExceptionType)
)

// IsPredefinedException t 是否为上面的预定义异常类之一
func IsPredefinedException(t *Type) bool {
	switch t {
	case ExceptionType, ArgumentExceptionType, ArgumentNullExceptionType,
		ArithmeticExceptionType, OverflowExceptionType, DivideByZeroExceptionType,
		InvalidCastExceptionType, NullReferenceExceptionType,
		InvalidOperationExceptionType, IndexOutOfRangeExceptionType:
		return true
	}
	return false
}

// Exception 目标程序中的异常值
//
// 常量折叠时捕获的错误以 Exception 表示，并被包装进 Throw 节点，
// 从不向优化器的调用者抛出。
type Exception struct {
	Type    *Type
	Message string
}

// NewException 创建异常值
func NewException(t *Type, format string, args ...interface{}) *Exception {
	return &Exception{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Error 实现 error 接口
func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Type.String()
	}
	return e.Type.String() + ": " + e.Message
}

// Is 同类型异常视为相等，用于 errors.Is 比较异常种类
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	return ok && Identical(t.Type, e.Type)
}

// 常用异常构造
func Overflow() *Exception {
	return NewException(OverflowExceptionType, "Arithmetic operation resulted in an overflow.")
}

func DivideByZero() *Exception {
	return NewException(DivideByZeroExceptionType, "Attempted to divide by zero.")
}

func NullReference() *Exception {
	return NewException(NullReferenceExceptionType, "Object reference not set to an instance of an object.")
}

func InvalidCast(from, to *Type) *Exception {
	return NewException(InvalidCastExceptionType, "Unable to cast object of type '%s' to type '%s'.", from, to)
}

func NoValue() *Exception {
	return NewException(InvalidOperationExceptionType, "Nullable object must have a value.")
}

func IndexOutOfRange() *Exception {
	return NewException(IndexOutOfRangeExceptionType, "Index was outside the bounds of the array.")
}
