package types

import (
	"fmt"
	"math"
	"reflect"
)

// Zero 返回类型的默认值（Go 值表示）
//
// 引用类型、Nullable 返回 nil；Struct 返回 *StructValue 零值。
func Zero(t *Type) any {
	switch t.Underlying().kind {
	case Bool:
		return false
	case Char:
		return uint16(0)
	case Int8:
		return int8(0)
	case Uint8:
		return uint8(0)
	case Int16:
		return int16(0)
	case Uint16:
		return uint16(0)
	case Int32:
		return int32(0)
	case Uint32:
		return uint32(0)
	case Int64:
		return int64(0)
	case Uint64:
		return uint64(0)
	case Float32:
		return float32(0)
	case Float64:
		return float64(0)
	case Struct:
		return &StructValue{Type: t, Fields: map[string]any{}}
	}
	return nil
}

// StructValue 用户值类型的实例
type StructValue struct {
	Type   *Type
	Fields map[string]any
}

// KindOfValue 返回 Go 值对应的基本类型代码，非基本值返回 Invalid
func KindOfValue(v any) Kind {
	switch v.(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case string:
		return String
	}
	return Invalid
}

// DynamicType 返回值的运行时类型（仅在能确定时）
func DynamicType(v any) *Type {
	switch x := v.(type) {
	case nil:
		return nil
	case *Exception:
		return x.Type
	case *StructValue:
		return x.Type
	}
	if k := KindOfValue(v); k != Invalid {
		return Primitive(k)
	}
	return nil
}

// CheckValue 检查 Go 值能否作为类型 t 的常量
func CheckValue(v any, t *Type) error {
	if v == nil {
		if !t.CanBeNull() {
			return fmt.Errorf("null is not a valid value of %s", t)
		}
		return nil
	}
	u := NonNullable(t).Underlying()
	if u.kind.IsPrimitive() {
		if k := KindOfValue(v); k != u.kind && !(u.kind == Char && k == Uint16) {
			return fmt.Errorf("value %v (%T) is not a valid %s", v, v, t)
		}
		return nil
	}
	if u.kind == Array {
		if reflect.TypeOf(v).Kind() != reflect.Slice {
			return fmt.Errorf("value %T is not a valid %s", v, t)
		}
	}
	return nil
}

// ValueEqual 比较两个常量值（引用类型按身份）
func ValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch x := a.(type) {
	case float32:
		return math.Float32bits(x) == math.Float32bits(b.(float32))
	case float64:
		return math.Float64bits(x) == math.Float64bits(b.(float64))
	}
	if ta.Comparable() {
		return a == b
	}
	if ta.Kind() == reflect.Slice {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer() &&
			reflect.ValueOf(a).Len() == reflect.ValueOf(b).Len()
	}
	return false
}
