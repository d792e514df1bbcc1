package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

type config struct {
	Listen        string `json:"listen"`
	WS            bool   `json:"ws"`
	MetricsListen string `json:"metrics_listen"`
	KeyFile       string `json:"key_file"`
	KeyType       string `json:"key_type"`
}

func loadConfig(path string) (*config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) > 1<<20 {
		return nil, errors.New("config too large")
	}
	var cfg config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:50000"
	}
	if cfg.KeyType == "" {
		cfg.KeyType = "ascii"
	}
	switch cfg.KeyType {
	case "ascii", "hex":
	default:
		return nil, errors.New("key_type must be ascii or hex")
	}
	return &cfg, nil
}
