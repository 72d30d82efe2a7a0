// Package errors 提供优化器的宿主误用错误
//
// 错误分为两个通道：宿主误用（本包，立即返回给调用者）和目标程序异常
// （types.Exception，包装在 Throw 节点中，属于被优化程序的语义）。
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// 错误码
// ============================================================================

const (
	// T0001-T0099: 参数错误
	T0001 = "T0001" // 参数为 nil
	T0002 = "T0002" // 参数数量不匹配
	T0003 = "T0003" // 参数类型不匹配
	T0004 = "T0004" // 按引用参数要求可赋值表达式

	// T0100-T0199: 类型错误
	T0100 = "T0100" // 运算符不支持该操作数类型
	T0101 = "T0101" // 转换不受支持
	T0102 = "T0102" // 常量值与类型不符
	T0103 = "T0103" // 块的最后一个表达式类型不符

	// T0200-T0299: 成员错误
	T0200 = "T0200" // 不支持的成员形态（如静态索引属性）
	T0201 = "T0201" // 成员没有可调用的实现
	T0202 = "T0202" // 成员不可写
	T0203 = "T0203" // 实例成员缺少对象 / 静态成员带对象

	// T0300-T0399: 重写错误
	T0300 = "T0300" // 重写产生了非法形态
	T0301 = "T0301" // 赋值目标不是左值
)

var messages = map[string]string{
	T0001: "argument must not be nil",
	T0002: "argument count mismatch",
	T0003: "argument type mismatch",
	T0004: "by-reference argument must be writable",
	T0100: "operator is not defined for the operand types",
	T0101: "conversion is not supported",
	T0102: "constant value does not match its type",
	T0103: "block result type mismatch",
	T0200: "unsupported member shape",
	T0201: "member has no implementation",
	T0202: "member is not writable",
	T0203: "instance/static member mismatch",
	T0300: "rewrite produced an invalid node shape",
	T0301: "assignment target is not an lvalue",
}

// Error 宿主误用错误
type Error struct {
	Code    string // 错误码 (T0001)
	Message string // 具体描述
}

// New 创建误用错误
func New(code string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error 实现 error 接口
func (e *Error) Error() string {
	base := messages[e.Code]
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Code, base)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, base, e.Message)
}

// Is 同错误码视为相等
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// 常用哨兵，配合 errors.Is 使用
var (
	ErrNilArgument   = &Error{Code: T0001}
	ErrArity         = &Error{Code: T0002}
	ErrArgumentType  = &Error{Code: T0003}
	ErrOperandType   = &Error{Code: T0100}
	ErrConversion    = &Error{Code: T0101}
	ErrMemberShape   = &Error{Code: T0200}
	ErrNoImpl        = &Error{Code: T0201}
	ErrInvalidShape  = &Error{Code: T0300}
	ErrNotAssignable = &Error{Code: T0301}
)

// CodeOf 取出错误链中的误用错误码，没有则返回空串
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
