package main

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	mm "mm_heap"
)

// heapConfig heapctl 配置文件的内容。
type heapConfig struct {
	InitialSize   int     `toml:"initial_size"`
	MinRegionSize int     `toml:"min_region_size"`
	StartAddress  address `toml:"start_address"`
}

// address 既可以写成整数 0x4040000，也可以写成字符串 "0x4040000" 或 "any"。
// 0 表示默认地址，"any" 表示由内核选择。
type address uintptr

func (a *address) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case int64:
		if v < 0 {
			return errors.Wrapf(mm.ErrBadArgument, "start address %d", v)
		}
		*a = address(v)
		return nil
	case string:
		p, err := parseAddress(v)
		if err != nil {
			return err
		}
		*a = address(p)
		return nil
	default:
		return errors.Wrapf(mm.ErrBadArgument, "start address of type %T", v)
	}
}

func defaultConfig() heapConfig {
	return heapConfig{
		InitialSize:   1000,
		MinRegionSize: mm.MinRegionSize,
		StartAddress:  address(mm.DefaultStartAddress),
	}
}

// loadConfig 读取 TOML 配置；未知的键视为错误。
func loadConfig(path string) (heapConfig, error) {
	cfg := defaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return cfg, errors.Newf("config %s: unknown keys %s", path, strings.Join(names, ", "))
	}
	return cfg, nil
}

// resolveConfig 依次应用默认值、配置文件和命令行参数。
func resolveConfig() (heapConfig, error) {
	cfg := defaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = loadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if initialSize != 0 {
		cfg.InitialSize = initialSize
	}
	if minRegionSize != 0 {
		cfg.MinRegionSize = minRegionSize
	}
	if startAddress != "" {
		a, err := parseAddress(startAddress)
		if err != nil {
			return cfg, err
		}
		cfg.StartAddress = address(a)
	}
	if cfg.InitialSize <= 0 {
		return cfg, errors.Wrapf(mm.ErrBadArgument, "initial size %d", cfg.InitialSize)
	}
	return cfg, nil
}

func parseAddress(s string) (uintptr, error) {
	if s == "any" {
		return mm.AnyAddress, nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(mm.ErrBadArgument, "start address %q", s)
	}
	return uintptr(v), nil
}

func (c heapConfig) options(log *slog.Logger) []mm.Option {
	return []mm.Option{
		mm.WithMinRegionSize(c.MinRegionSize),
		mm.WithStartAddress(uintptr(c.StartAddress)),
		mm.WithLogger(log),
	}
}
