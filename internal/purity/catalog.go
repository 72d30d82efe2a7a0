// Package purity 维护"已知纯"的成员目录
//
// 目录条目可以是精确成员，也可以是开放泛型成员（泛型类型上的成员或泛型方法）。
// 开放泛型条目按 (声明类型模板, 名称, 种类, 参数个数) 分桶，
// 查询时用类型形参替换表对签名做合一匹配，不依赖运行时反射。
package purity

import (
	"fmt"
	"sync"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/types"
)

// Flags 条目属性
type Flags uint8

const (
	// Pure 无副作用且不抛出
	Pure Flags = 1 << iota
	// Identity 单参数成员原样返回实参
	Identity
)

type sigKey struct {
	decl   *types.Type
	name   string
	kind   types.MemberKind
	static bool
	arity  int
}

type entry struct {
	pattern *types.Member
	flags   Flags
}

// Catalog 纯成员目录
//
// 构建阶段调用 Add，Freeze 之后只读，可被多个优化器并发查询。
type Catalog struct {
	mu      sync.RWMutex
	frozen  bool
	exact   map[*types.Member]Flags
	buckets map[sigKey][]entry
}

// NewCatalog 创建空目录
func NewCatalog() *Catalog {
	return &Catalog{
		exact:   make(map[*types.Member]Flags),
		buckets: make(map[sigKey][]entry),
	}
}

func keyOf(m *types.Member) sigKey {
	decl := m.DeclaringType
	if decl != nil {
		switch {
		case decl.Template() != nil:
			decl = decl.Template()
		case decl.Kind() == types.Nullable || decl.Kind() == types.Array:
			decl = nil
		}
	}
	return sigKey{decl: decl, name: m.Name, kind: m.Kind, static: m.Static, arity: len(m.Params)}
}

// Add 登记成员（可以是开放泛型）
func (c *Catalog) Add(m *types.Member, flags Flags) error {
	if m == nil {
		return terrors.New(terrors.T0001, "catalog member")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("purity catalog is frozen: cannot add %s", m)
	}
	c.exact[m] |= flags
	k := keyOf(m.Root())
	c.buckets[k] = append(c.buckets[k], entry{pattern: m.Root(), flags: flags})
	return nil
}

// MustAdd 登记成员，失败时 panic
func (c *Catalog) MustAdd(m *types.Member, flags Flags) {
	if err := c.Add(m, flags); err != nil {
		panic(err)
	}
}

// Freeze 结束构建，之后目录只读
func (c *Catalog) Freeze() *Catalog {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
	return c
}

// Len 条目数
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.exact)
}

// IsPure 成员是否已知纯
func (c *Catalog) IsPure(m *types.Member) bool {
	return c.lookup(m)&Pure != 0
}

// IsIdentity 成员是否为恒等函数
func (c *Catalog) IsIdentity(m *types.Member) bool {
	return c.lookup(m)&Identity != 0
}

func (c *Catalog) lookup(m *types.Member) Flags {
	if c == nil || m == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if f, ok := c.exact[m]; ok {
		return f
	}
	var flags Flags
	for _, e := range c.buckets[keyOf(m)] {
		if matches(e.pattern, m) {
			flags |= e.flags
		}
	}
	return flags
}

// matches 用合一判断 m 是否为 pattern 的一个实例
func matches(pattern, m *types.Member) bool {
	b := make(map[*types.Type]*types.Type)
	if pattern.DeclaringType != nil && !types.Unify(pattern.DeclaringType, m.DeclaringType, b) {
		return false
	}
	if len(pattern.TypeParams) != len(m.TypeArgs) && len(pattern.TypeParams) != len(m.TypeParams) {
		return false
	}
	for i, p := range pattern.Params {
		q := m.Params[i]
		if p.ByRef != q.ByRef || !types.Unify(p.Type, q.Type, b) {
			return false
		}
	}
	if pattern.Kind == types.ConstructorMember {
		return true
	}
	return types.Unify(pattern.Result, m.Result, b)
}
