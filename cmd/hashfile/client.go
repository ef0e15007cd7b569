package main

import (
	"fmt"
	"strings"

	"hashfile/internal/api"
	"hashfile/internal/config"
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	if cfg == nil || strings.TrimSpace(cfg.APIURL) == "" {
		return fmt.Errorf("api url is required")
	}
	return fn(api.NewClient(cfg.APIURL))
}
