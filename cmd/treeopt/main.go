package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/tangzhangming/treeopt/internal/config"
	"github.com/tangzhangming/treeopt/internal/interp"
	"github.com/tangzhangming/treeopt/internal/logging"
	"github.com/tangzhangming/treeopt/internal/optimizer"
	"github.com/tangzhangming/treeopt/internal/purity"
	"github.com/tangzhangming/treeopt/internal/semantics"
	"github.com/tangzhangming/treeopt/internal/tree"
	"github.com/tangzhangming/treeopt/internal/types"
)

var (
	configPath   = flag.String("config", "", "Path to treeopt.toml (default: search upwards from the working directory)")
	scenarioName = flag.String("scenario", "all", "Scenario to run (A-F or all)")
	jsonOutput   = flag.Bool("json", false, "Print reports as JSON")
	showStats    = flag.Bool("stats", false, "Include optimizer and interpreter statistics")
	listOnly     = flag.Bool("list", false, "List scenarios and exit")
	noColor      = flag.Bool("no-color", false, "Disable colored output")
)

func main() {
	flag.Parse()

	paint := detectColor()
	if *noColor {
		paint = painter{}
	}
	fail := func(code int, err error) {
		fmt.Fprintf(os.Stderr, "%s %v\n", paint.failure("Error:"), err)
		os.Exit(code)
	}

	if *listOnly {
		for _, s := range scenarios {
			fmt.Printf("  %s  %s\n", s.name, s.title)
		}
		return
	}

	path := *configPath
	if path == "" {
		path = config.FindConfigFile(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		fail(1, err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fail(1, err)
	}
	defer log.Sync()

	selected := scenarios
	if *scenarioName != "all" {
		s, ok := findScenario(strings.ToUpper(*scenarioName))
		if !ok {
			fail(2, fmt.Errorf("unknown scenario %q", *scenarioName))
		}
		selected = []scenario{s}
	}

	r, err := newRunner(cfg, log)
	if err != nil {
		fail(1, err)
	}
	r.stats = *showStats
	reports, err := r.runAll(selected)
	if err != nil {
		fail(1, err)
	}

	if *jsonOutput {
		if err := writeJSON(os.Stdout, reports); err != nil {
			fail(1, err)
		}
	} else {
		writeText(os.Stdout, reports, paint)
	}
	for _, rep := range reports {
		for _, c := range rep.Cases {
			if !c.Agree {
				os.Exit(3)
			}
		}
	}
}

// ============================================================================
// 运行
// ============================================================================

// runner 把场景依次交给优化器与解释器
type runner struct {
	host    *host
	oracle  semantics.Oracle
	catalog *purity.Catalog
	opts    []optimizer.Option
	log     *zap.Logger
	stats   bool
}

func newRunner(cfg *config.Config, log *zap.Logger) (*runner, error) {
	h := newHost()
	catalog, err := h.lib.Catalog(cfg.Purity.Members...)
	if err != nil {
		return nil, fmt.Errorf("purity.members: %w", err)
	}
	return &runner{
		host:    h,
		oracle:  semantics.WithCatalog(nil, catalog),
		catalog: catalog,
		opts:    append(cfg.Options(), optimizer.WithLogger(log)),
		log:     log,
	}, nil
}

// Report 一个场景的结果
type Report struct {
	Scenario string                   `json:"scenario"`
	Title    string                   `json:"title"`
	Cases    []Case                   `json:"cases"`
	Stats    *optimizer.StatsSnapshot `json:"stats,omitempty"`
}

// Case 一棵树优化前后的对比
type Case struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Before Result `json:"before"`
	After  Result `json:"after"`
	Agree  bool   `json:"agree"`
}

// Result 一次解释执行的可观察结果
type Result struct {
	Value     any           `json:"value,omitempty"`
	Exception string        `json:"exception,omitempty"`
	Effects   []string      `json:"effects,omitempty"`
	Stats     *interp.Stats `json:"stats,omitempty"`
}

func (r *runner) runAll(selected []scenario) ([]Report, error) {
	reports := make([]Report, 0, len(selected))
	for _, s := range selected {
		rep, err := r.run(s)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.name, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (r *runner) run(s scenario) (Report, error) {
	rep := Report{Scenario: s.name, Title: s.title}
	var last *optimizer.Optimizer
	for _, ex := range s.examples(r.host) {
		o := optimizer.New(withNonNull(r.oracle, ex.nonNull), nil, r.opts...)
		out, err := o.Optimize(ex.input)
		if err != nil {
			return rep, err
		}
		before, err := r.execute(ex.input, ex.env)
		if err != nil {
			return rep, err
		}
		after, err := r.execute(out, ex.env)
		if err != nil {
			return rep, err
		}
		c := Case{
			Input:  tree.Format(ex.input),
			Output: tree.Format(out),
			Before: before,
			After:  after,
			Agree:  same(before, after),
		}
		r.log.Info("optimized",
			zap.String("scenario", s.name),
			zap.String("input", c.Input),
			zap.String("output", c.Output),
			zap.Bool("agree", c.Agree))
		rep.Cases = append(rep.Cases, c)
		last = o
	}
	if r.stats && last != nil {
		snap := last.Stats()
		rep.Stats = &snap
	}
	return rep, nil
}

// execute 在新的解释器中运行一次；目标程序异常记入结果，其余错误返回
func (r *runner) execute(n tree.Node, env map[*tree.Parameter]any) (Result, error) {
	r.host.ticks = 0
	globals := make(map[*tree.Parameter]any, len(env))
	for p, v := range env {
		globals[p] = v
	}
	in := interp.New(nil, interp.WithLogger(r.log), interp.WithSilent(r.catalog.IsPure))
	v, err := in.Run(n, globals)

	var res Result
	if err != nil {
		var exc *types.Exception
		if !errors.As(err, &exc) {
			return res, err
		}
		res.Exception = exc.Type.String()
	} else {
		res.Value = v
	}
	for _, e := range in.Effects() {
		res.Effects = append(res.Effects, e.String())
	}
	if r.stats {
		st := in.Stats()
		res.Stats = &st
	}
	return res, nil
}

func same(a, b Result) bool {
	if a.Exception != b.Exception || !types.ValueEqual(a.Value, b.Value) {
		return false
	}
	return strings.Join(a.Effects, "\n") == strings.Join(b.Effects, "\n")
}

// ============================================================================
// 输出
// ============================================================================

func writeJSON(w io.Writer, reports []Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func writeText(w io.Writer, reports []Report, p painter) {
	for _, rep := range reports {
		fmt.Fprintln(w, p.title(fmt.Sprintf("=== Scenario %s: %s ===", rep.Scenario, rep.Title)))
		for _, c := range rep.Cases {
			fmt.Fprintf(w, "  input:  %s\n", p.input(c.Input))
			fmt.Fprintf(w, "  output: %s\n", p.output(c.Output))
			fmt.Fprintf(w, "  before: %s\n", c.Before)
			fmt.Fprintf(w, "  after:  %s\n", c.After)
			if !c.Agree {
				fmt.Fprintln(w, p.mismatch("  MISMATCH"))
			}
			fmt.Fprintln(w)
		}
		if rep.Stats != nil {
			fmt.Fprintf(w, "  rewrites: %v\n", rep.Stats.Rewrites)
			fmt.Fprintf(w, "  reduce:   %d/%d reduced, skipped %v\n",
				rep.Stats.Reduce.Reduced, rep.Stats.Reduce.Attempts, rep.Stats.Reduce.Skipped)
			fmt.Fprintln(w)
		}
	}
}

func (r Result) String() string {
	var sb strings.Builder
	if r.Exception != "" {
		sb.WriteString("throws " + r.Exception)
	} else {
		fmt.Fprintf(&sb, "%v", r.Value)
	}
	if len(r.Effects) > 0 {
		sb.WriteString(" [" + strings.Join(r.Effects, "; ") + "]")
	}
	if r.Stats != nil {
		fmt.Fprintf(&sb, " (%d nodes)", r.Stats.NodesEvaluated)
	}
	return sb.String()
}
