package optimizer

import (
	"fmt"

	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/walk"
)

// ============================================================================
// Pass 接口
// ============================================================================

// Pass 整树优化 Pass
type Pass interface {
	Name() string
	// Run 返回变换后的树；没有修改时返回输入本身
	Run(n tree.Node) (tree.Node, error)
}

// ============================================================================
// Pass 管理器
// ============================================================================

// PassManager Pass 管理器
type PassManager struct {
	passes []Pass
	stats  PassStats
}

// PassStats Pass 统计信息
type PassStats struct {
	PassesRun      int            `json:"passes_run"`
	TotalChanges   int            `json:"total_changes"`
	PerPassChanges map[string]int `json:"per_pass_changes"`
}

// NewPassManager 创建 Pass 管理器
func NewPassManager() *PassManager {
	return &PassManager{
		stats: PassStats{
			PerPassChanges: make(map[string]int),
		},
	}
}

// AddPass 添加 Pass
func (pm *PassManager) AddPass(p Pass) {
	pm.passes = append(pm.passes, p)
}

// Run 依次运行所有 Pass 一遍
func (pm *PassManager) Run(n tree.Node) (tree.Node, error) {
	out, _, err := pm.runOnce(n)
	return out, err
}

// RunUntilFixed 重复运行 Pass 直到不再有改变，最多 maxIters 轮
func (pm *PassManager) RunUntilFixed(n tree.Node, maxIters int) (tree.Node, error) {
	for i := 0; i < maxIters; i++ {
		out, changed, err := pm.runOnce(n)
		if err != nil {
			return nil, err
		}
		n = out
		if !changed {
			break
		}
	}
	return n, nil
}

func (pm *PassManager) runOnce(n tree.Node) (tree.Node, bool, error) {
	changed := false
	for _, p := range pm.passes {
		pm.stats.PassesRun++
		out, err := p.Run(n)
		if err != nil {
			return nil, false, fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		if out != n {
			changed = true
			pm.stats.TotalChanges++
			pm.stats.PerPassChanges[p.Name()]++
		}
		n = out
	}
	return n, changed, nil
}

// Stats 获取统计信息
func (pm *PassManager) Stats() PassStats {
	return pm.stats
}

// ============================================================================
// 预置 Pipeline
// ============================================================================

// CreateStandardPipeline 规则化简，单独的内联，再做一次规则化简
func CreateStandardPipeline(o *Optimizer) *PassManager {
	pm := NewPassManager()
	pm.AddPass(NewRulesPass(o))
	pm.AddPass(NewBetaPass(o))
	pm.AddPass(NewRulesPass(o))
	return pm
}

// ============================================================================
// 规则 Pass
// ============================================================================

// RulesPass 运行完整的规则遍历
type RulesPass struct {
	o *Optimizer
}

// NewRulesPass 创建规则 Pass
func NewRulesPass(o *Optimizer) *RulesPass {
	return &RulesPass{o: o}
}

// Name 返回 Pass 名称
func (p *RulesPass) Name() string { return "rules" }

// Run 执行 Pass
func (p *RulesPass) Run(n tree.Node) (tree.Node, error) {
	out, err := p.o.Optimize(n)
	if err != nil {
		return nil, err
	}
	// 化简可能重建出结构相同的树
	if tree.EqualNodes(out, n) {
		return n, nil
	}
	return out, nil
}

// ============================================================================
// 内联 Pass
// ============================================================================

// BetaPass 只内联 lambda 的直接调用，不应用其他规则
//
// 不受 Options.BetaReduction 开关影响。
type BetaPass struct {
	o *Optimizer
}

// NewBetaPass 创建内联 Pass
func NewBetaPass(o *Optimizer) *BetaPass {
	return &BetaPass{o: o}
}

// Name 返回 Pass 名称
func (p *BetaPass) Name() string { return "beta" }

// Run 执行 Pass
func (p *BetaPass) Run(n tree.Node) (tree.Node, error) {
	return walk.Rewrite(n, func(w *walk.Walker, n tree.Node) tree.Node {
		if _, ok := n.(*tree.Quote); ok {
			return n
		}
		out := w.Children(n)
		if inv, ok := out.(*tree.Invocation); ok {
			if _, isLambda := inv.Expression.(*tree.Lambda); isLambda {
				return p.o.beta(inv)
			}
		}
		return out
	}, nil)
}
