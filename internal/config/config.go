// Package config 加载 treeopt 的 TOML 配置
//
// 配置来源按优先级从低到高：内置默认值、treeopt.toml、TREEOPT_* 环境变量。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xyproto/env/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/tangzhangming/treeopt/internal/optimizer"
)

// 常量定义
const (
	ConfigFileName = "treeopt.toml" // 配置文件名
)

// 环境变量
const (
	EnvLogLevel        = "TREEOPT_LOG_LEVEL"
	EnvBetaReduction   = "TREEOPT_BETA_REDUCTION"
	EnvBlockPipeline   = "TREEOPT_BLOCK_PIPELINE"
	EnvTryFolding      = "TREEOPT_TRY_FOLDING"
	EnvConstantFolding = "TREEOPT_CONSTANT_FOLDING"
)

// Config 完整配置
type Config struct {
	Optimizer OptimizerConfig `toml:"optimizer"`
	Log       LogConfig       `toml:"log"`
	Purity    PurityConfig    `toml:"purity"`
}

// OptimizerConfig 规则族开关
type OptimizerConfig struct {
	BetaReduction   bool `toml:"beta_reduction"`
	BlockPipeline   bool `toml:"block_pipeline"`
	TryFolding      bool `toml:"try_folding"`
	ConstantFolding bool `toml:"constant_folding"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level zap 日志级别（debug/info/warn/error）
	Level string `toml:"level"`

	// Development 使用开发模式的控制台输出
	Development bool `toml:"development"`
}

// PurityConfig 已知纯成员
type PurityConfig struct {
	// Members "类型.成员" 或 "类型.*"，按内置成员库解析
	Members []string `toml:"members"`
}

// Default 返回默认配置：所有规则开启，info 级别
func Default() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			BetaReduction:   true,
			BlockPipeline:   true,
			TryFolding:      true,
			ConstantFolding: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 从文件加载配置；path 为空时只使用默认值。环境变量覆盖文件中的值。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 用 TREEOPT_* 环境变量覆盖配置；每次都重新读取环境，不沿用上次的缓存
func (c *Config) applyEnv() {
	env.Load()
	c.Log.Level = env.Str(EnvLogLevel, c.Log.Level)
	flags := []struct {
		name string
		dst  *bool
	}{
		{EnvBetaReduction, &c.Optimizer.BetaReduction},
		{EnvBlockPipeline, &c.Optimizer.BlockPipeline},
		{EnvTryFolding, &c.Optimizer.TryFolding},
		{EnvConstantFolding, &c.Optimizer.ConstantFolding},
	}
	for _, f := range flags {
		if env.Has(f.name) {
			*f.dst = env.Bool(f.name)
		}
	}
}

// Validate 检查配置；所有问题合并返回
func (c *Config) Validate() error {
	var err error
	var lvl zapcore.Level
	if e := lvl.UnmarshalText([]byte(c.Log.Level)); e != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", e))
	}
	seen := make(map[string]bool, len(c.Purity.Members))
	for i, m := range c.Purity.Members {
		switch {
		case !strings.Contains(m, ".") || strings.HasPrefix(m, ".") || strings.HasSuffix(m, "."):
			err = multierr.Append(err, fmt.Errorf("purity.members[%d]: %q is not Type.Member", i, m))
		case seen[m]:
			err = multierr.Append(err, fmt.Errorf("purity.members[%d]: duplicate %q", i, m))
		}
		seen[m] = true
	}
	return err
}

// Options 转换为优化器选项
func (c *Config) Options() []optimizer.Option {
	return []optimizer.Option{
		optimizer.WithBetaReduction(c.Optimizer.BetaReduction),
		optimizer.WithBlockPipeline(c.Optimizer.BlockPipeline),
		optimizer.WithTryFolding(c.Optimizer.TryFolding),
		optimizer.WithConstantFolding(c.Optimizer.ConstantFolding),
	}
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindConfigFile 从指定目录向上查找配置文件，找不到返回空字符串
func FindConfigFile(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
