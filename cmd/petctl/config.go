package main

import (
	"os"

	"github.com/BurntSushi/toml"
)

const (
	defaultConfigPath = "configs/petctl.toml"
	localConfigPath   = "petctl.toml"
)

// fileConfig is the optional TOML profile. Flags and env override it.
type fileConfig struct {
	Server  string `toml:"server"`
	Token   string `toml:"token"`
	From    string `toml:"from"`
	Network string `toml:"network"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		path = resolveConfigPath()
	}
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}

func resolveConfigPath() string {
	for _, p := range []string{defaultConfigPath, localConfigPath} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
