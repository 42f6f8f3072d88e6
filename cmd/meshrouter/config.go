package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dep2p/go-meshrouter/config"
)

// loadConfig 加载配置
//
// 优先级（从高到低）：命令行参数 > 环境变量（MESHROUTER_* 前缀）> 配置文件 > 预设默认值。
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.NewConfig()
		if err := config.ApplyPreset(cfg, *preset); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyFlagOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("MESHROUTER_NAME"); v != "" {
		cfg.Profile.Name = v
	}
	if v := os.Getenv("MESHROUTER_IDENTITY"); v != "" {
		cfg.Identity.KeyFile = v
	}
	if v := os.Getenv("MESHROUTER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
		cfg.Storage.Enabled = true
	}
	if v := os.Getenv("MESHROUTER_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv("MESHROUTER_USER_INFO_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Propagation.UserInfoInterval = config.Duration(d)
		}
	}
	if v := os.Getenv("MESHROUTER_STORAGE"); v != "" {
		cfg.Storage.Enabled = parseBool(v)
	}
}

// applyFlagOverrides 应用显式设置的命令行参数
func applyFlagOverrides(cfg *config.Config) {
	if isFlagSet("name") {
		cfg.Profile.Name = *name
	}
	if isFlagSet("identity") {
		cfg.Identity.KeyFile = *identityFile
	}
	if isFlagSet("data-dir") {
		cfg.Storage.DataDir = *dataDir
		cfg.Storage.Enabled = *dataDir != ""
	}
	if isFlagSet("metrics-addr") {
		cfg.Metrics.ListenAddr = *metricsAddr
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
