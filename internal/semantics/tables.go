package semantics

import (
	"math"

	"github.com/tangzhangming/treeopt/internal/tree"
)

// ============================================================================
// 按宽度枚举的特殊值
// ============================================================================
//
// 位模式表有意把 bool 的 false/true 与全 0/全 1 整数视为同一类，
// 这样 x&~0、x|0、x^0 等规则对 bool 与整数共用一套实现。
//
// ============================================================================

type valueSet map[any]struct{}

func setOf(vs ...any) valueSet {
	s := make(valueSet, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

var (
	zeros = setOf(
		int8(0), uint8(0), int16(0), uint16(0),
		int32(0), uint32(0), int64(0), uint64(0),
	)

	ones = setOf(
		int8(1), uint8(1), int16(1), uint16(1),
		int32(1), uint32(1), int64(1), uint64(1),
	)

	allBitsZero = setOf(
		false,
		int8(0), uint8(0), int16(0), uint16(0),
		int32(0), uint32(0), int64(0), uint64(0),
	)

	allBitsOne = setOf(
		true,
		int8(-1), uint8(math.MaxUint8), int16(-1), uint16(math.MaxUint16),
		int32(-1), uint32(math.MaxUint32), int64(-1), uint64(math.MaxUint64),
	)

	minValues = setOf(
		int8(math.MinInt8), uint8(0), int16(math.MinInt16), uint16(0),
		int32(math.MinInt32), uint32(0), int64(math.MinInt64), uint64(0),
	)

	maxValues = setOf(
		int8(math.MaxInt8), uint8(math.MaxUint8), int16(math.MaxInt16), uint16(math.MaxUint16),
		int32(math.MaxInt32), uint32(math.MaxUint32), int64(math.MaxInt64), uint64(math.MaxUint64),
	)
)

func matchValue(n tree.Node, set valueSet) bool {
	v, ok := constantOf(n)
	if !ok || v == nil {
		return false
	}
	switch v.(type) {
	case bool, int8, uint8, int16, uint16, int32, uint32, int64, uint64:
		_, hit := set[v]
		return hit
	}
	return false
}
