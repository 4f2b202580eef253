// Package config 加载后端配置
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// 常量定义
const (
	ConfigFileName = "tysila.toml" // 配置文件名
)

// Config 后端配置
type Config struct {
	Target  TargetConfig  `toml:"target"`
	Runtime RuntimeConfig `toml:"runtime"`
	Debug   DebugConfig   `toml:"debug"`
}

// TargetConfig 目标架构
type TargetConfig struct {
	// Variant 架构变体：x86_64 或 i586
	Variant string `toml:"variant"`
}

// RuntimeConfig 运行时入口符号
type RuntimeConfig struct {
	// ThrowSymbol 抛出动态异常值的入口
	ThrowSymbol string `toml:"throw_symbol"`

	// StaticThrowSymbol 抛出编译期已知异常编号的入口
	StaticThrowSymbol string `toml:"static_throw_symbol"`
}

// DebugConfig 调试选项
type DebugConfig struct {
	Verify   bool   `toml:"verify"`    // 降级后反汇编校验每个操作
	Listing  bool   `toml:"listing"`   // 输出 JSON 清单
	LogLevel string `toml:"log_level"` // debug/info/warn/error
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Target: TargetConfig{Variant: "x86_64"},
		Runtime: RuntimeConfig{
			ThrowSymbol:       "throw",
			StaticThrowSymbol: "sthrow",
		},
		Debug: DebugConfig{LogLevel: "info"},
	}
}

// Load 从文件加载配置，未出现的字段取默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 TOML 配置内容并校验
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 检查配置，返回全部问题
func (c *Config) Validate() error {
	var err error
	switch strings.ToLower(c.Target.Variant) {
	case "x86_64", "x86-64", "amd64", "i586":
	default:
		err = multierr.Append(err, fmt.Errorf("target.variant: unknown variant %q", c.Target.Variant))
	}
	if c.Runtime.ThrowSymbol == "" {
		err = multierr.Append(err, fmt.Errorf("runtime.throw_symbol: must not be empty"))
	}
	if c.Runtime.StaticThrowSymbol == "" {
		err = multierr.Append(err, fmt.Errorf("runtime.static_throw_symbol: must not be empty"))
	}
	if c.Runtime.ThrowSymbol != "" && c.Runtime.ThrowSymbol == c.Runtime.StaticThrowSymbol {
		err = multierr.Append(err, fmt.Errorf("runtime: throw_symbol and static_throw_symbol must differ"))
	}
	var lvl zapcore.Level
	if uerr := lvl.UnmarshalText([]byte(c.Debug.LogLevel)); uerr != nil {
		err = multierr.Append(err, fmt.Errorf("debug.log_level: %w", uerr))
	}
	return err
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	content := generateConfigWithComments(c)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateConfigWithComments 生成带注释的配置文件内容
func generateConfigWithComments(c *Config) string {
	var sb strings.Builder

	sb.WriteString("[target]\n")
	sb.WriteString("# 架构变体（x86_64 或 i586）\n")
	sb.WriteString(fmt.Sprintf("variant = %q\n\n", c.Target.Variant))

	sb.WriteString("[runtime]\n")
	sb.WriteString("# 运行时异常抛出入口\n")
	sb.WriteString(fmt.Sprintf("throw_symbol = %q\n", c.Runtime.ThrowSymbol))
	sb.WriteString(fmt.Sprintf("static_throw_symbol = %q\n\n", c.Runtime.StaticThrowSymbol))

	sb.WriteString("[debug]\n")
	sb.WriteString(fmt.Sprintf("verify = %t\n", c.Debug.Verify))
	sb.WriteString(fmt.Sprintf("listing = %t\n", c.Debug.Listing))
	sb.WriteString(fmt.Sprintf("log_level = %q\n", c.Debug.LogLevel))

	return sb.String()
}

// FindConfigFile 从指定路径向上查找配置文件
// 返回配置文件的完整路径，如果找不到则返回空字符串
func FindConfigFile(startPath string) string {
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}

	dir := startPath
	if !info.IsDir() {
		dir = filepath.Dir(startPath)
	}
	dir, err = filepath.Abs(dir)
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
