package main

import (
	"os"
	"strings"

	"github.com/xyproto/env/v2"
)

// Color 终端颜色
type Color int

const (
	ColorReset Color = iota
	ColorRed
	ColorGreen
	ColorCyan
	ColorBoldRed
	ColorBoldWhite
)

var ansiCodes = map[Color]string{
	ColorReset:     "\033[0m",
	ColorRed:       "\033[31m",
	ColorGreen:     "\033[32m",
	ColorCyan:      "\033[36m",
	ColorBoldRed:   "\033[1;31m",
	ColorBoldWhite: "\033[1;37m",
}

// painter 为文本输出着色；enabled 为 false 时原样返回
type painter struct {
	enabled bool
}

// detectColor 检测 stdout 是否支持颜色
func detectColor() painter {
	env.Load()
	if env.Has("NO_COLOR") {
		return painter{}
	}
	term := env.Str("TERM")
	if term == "dumb" {
		return painter{}
	}
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		return painter{enabled: true}
	}
	if env.Has("COLORTERM") {
		return painter{enabled: true}
	}
	for _, ct := range []string{"xterm", "screen", "vt100", "linux", "ansi"} {
		if strings.Contains(strings.ToLower(term), ct) {
			return painter{enabled: true}
		}
	}
	return painter{}
}

// Colorize 着色字符串
func (p painter) Colorize(s string, c Color) string {
	if !p.enabled {
		return s
	}
	code, ok := ansiCodes[c]
	if !ok {
		return s
	}
	return code + s + ansiCodes[ColorReset]
}

func (p painter) title(s string) string    { return p.Colorize(s, ColorBoldWhite) }
func (p painter) input(s string) string    { return p.Colorize(s, ColorCyan) }
func (p painter) output(s string) string   { return p.Colorize(s, ColorGreen) }
func (p painter) mismatch(s string) string { return p.Colorize(s, ColorBoldRed) }
func (p painter) failure(s string) string  { return p.Colorize(s, ColorRed) }
