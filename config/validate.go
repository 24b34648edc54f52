package config

import (
	"errors"
	"fmt"
)

// knownViews 与 portfolio 包的视图 ID 保持一致；config 不反向依赖业务包。
var knownViews = map[string]bool{
	"active":   true,
	"pending":  true,
	"closed":   true,
	"rejected":       true,
	"options":        true,
	"options_closed": true,
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.baseURL is required (or TT_BASE_URL)")
	}
	if cfg.Gateway.WSURL == "" {
		return errors.New("gateway.wsURL is required (or TT_WS_URL)")
	}
	if cfg.Gateway.UserID == "" {
		return errors.New("gateway.userID is required (or TT_USER_ID)")
	}
	if cfg.Gateway.RestRate < 0 {
		return errors.New("gateway.restRate must be >= 0")
	}
	if cfg.Gateway.RestBurst < 0 {
		return errors.New("gateway.restBurst must be >= 0")
	}
	if len(cfg.Views) == 0 {
		return errors.New("views config is required")
	}
	for name, vc := range cfg.Views {
		if !knownViews[name] {
			return fmt.Errorf("unknown view %q", name)
		}
		if vc.IntervalMs <= 0 {
			return fmt.Errorf("view %s intervalMs must be > 0", name)
		}
	}
	if cfg.Feed.BackoffMs < 0 {
		return errors.New("feed.backoffMs must be >= 0")
	}
	if cfg.Feed.BackoffMaxMs < 0 {
		return errors.New("feed.backoffMaxMs must be >= 0")
	}
	if cfg.Feed.BackoffMaxMs > 0 && cfg.Feed.BackoffMaxMs < cfg.Feed.BackoffMs {
		return errors.New("feed.backoffMaxMs must be >= feed.backoffMs")
	}
	return nil
}
