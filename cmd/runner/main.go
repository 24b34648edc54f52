package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"trading-terminal-go/config"
	"trading-terminal-go/gateway"
	"trading-terminal-go/infrastructure/alert"
	"trading-terminal-go/infrastructure/logger"
	internalconfig "trading-terminal-go/internal/config"
	"trading-terminal-go/internal/feed"
	"trading-terminal-go/market"
	"trading-terminal-go/metrics"
	"trading-terminal-go/monitor/logschema"
	"trading-terminal-go/portfolio"
	"trading-terminal-go/reconcile"
)

// pollFailureAlertThreshold 同一视图连续失败达到该次数时告警。
const pollFailureAlertThreshold = 3

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	metricsAddr := flag.String("metricsAddr", "", "覆盖配置中的 metrics 监听地址")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Level:      orDefault(cfg.Logger.Level, "info"),
		Outputs:    orDefaultSlice(cfg.Logger.Outputs, []string{"stdout"}),
		OutputFile: cfg.Logger.OutputFile,
		ErrorFile:  cfg.Logger.ErrorFile,
		Format:     orDefault(cfg.Logger.Format, "json"),
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		metrics.StartMetricsServer(addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 行情侧
	pub := market.NewPublisher()
	table := market.NewTable(pub)
	feedMgr := feed.NewManager(feed.Config{
		URL:         cfg.Gateway.WSURL,
		ClientID:    cfg.Gateway.UserID,
		BackoffBase: time.Duration(cfg.Feed.BackoffMs) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.Feed.BackoffMaxMs) * time.Millisecond,
	}, table)
	feedMgr.SetEventSink(func(event string, fields map[string]interface{}) {
		if err := logschema.Validate(event, fields); err != nil {
			lg.LogError(err, map[string]interface{}{"event": event})
		}
		lg.LogStream(event, fields)
	})

	// 订单侧
	store := portfolio.NewStore()
	restClient := &gateway.PortfolioRESTClient{
		BaseURL:    cfg.Gateway.BaseURL,
		UserID:     cfg.Gateway.UserID,
		HTTPClient: gateway.NewDefaultHTTPClient(),
	}
	if cfg.Gateway.RestRate > 0 {
		restClient.Limiter = gateway.NewTokenBucketLimiter(cfg.Gateway.RestRate, cfg.Gateway.RestBurst)
	}
	sched := portfolio.NewScheduler(store, func(event string, fields map[string]interface{}) {
		if err := logschema.Validate(event, fields); err != nil {
			lg.LogError(err, map[string]interface{}{"event": event})
		}
		view, _ := fields["view"].(string)
		lg.LogPoll(event, view, fields)
	})

	// 对账侧
	svc := reconcile.NewService(table, store)
	go svc.Run(ctx, pub.SubscribeUpdates())

	// 告警
	alerts := alert.NewManager([]alert.Channel{alert.NewLogChannel("log", os.Stderr)}, time.Minute)
	go watchSnapshots(ctx, svc, lg, alerts)

	// 视图调度
	var schedMu sync.Mutex
	cancels := make(map[portfolio.ViewID]portfolio.CancelFunc)
	applyViews := func(views map[string]config.ViewConfig) {
		schedMu.Lock()
		defer schedMu.Unlock()
		for view, stop := range cancels {
			stop()
			delete(cancels, view)
		}
		for name, vc := range views {
			view := portfolio.ViewID(name)
			cancels[view] = sched.Schedule(view, vc.Interval(), restClient.FetchFor(view))
		}
	}
	applyViews(cfg.Views)

	// 订阅集：配置的行情卡 token，可选并入订单引用的 token
	feedMgr.Start(cfg.Feed.Tokens)
	if cfg.Feed.FollowOrders {
		go followOrderTokens(ctx, cfg, store, feedMgr)
	}

	// 配置热更新：重排视图调度并替换订阅集
	reloader, err := internalconfig.NewHotReloader(*cfgPath, internalconfig.DefaultHotReloadConfig(), func(next config.AppConfig) error {
		applyViews(next.Views)
		if !next.Feed.FollowOrders {
			feedMgr.SetTokens(next.Feed.Tokens)
		}
		lg.Info("config reloaded")
		return nil
	})
	if err != nil {
		lg.LogError(err, map[string]interface{}{"stage": "hot_reload_init"})
	} else if err := reloader.Start(ctx); err != nil {
		lg.LogError(err, map[string]interface{}{"stage": "hot_reload_start"})
	}

	// systemd 集成
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	lg.Info("shutting down")

	cancel()
	if reloader != nil {
		_ = reloader.Stop()
	}
	schedMu.Lock()
	for _, stop := range cancels {
		stop()
	}
	schedMu.Unlock()
	sched.Close()
	feedMgr.Stop()
}

// watchSnapshots 记录对账快照并跟踪连续轮询失败。
func watchSnapshots(ctx context.Context, svc *reconcile.Service, lg *logger.Logger, alerts *alert.Manager) {
	snapshots := svc.Subscribe()
	failures := make(map[portfolio.ViewID]int)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			fields := map[string]interface{}{
				"view":    string(snap.View),
				"rows":    len(snap.Rows),
				"pending": reconcile.PendingCount(snap.Rows),
			}
			if err := logschema.Validate("view_snapshot", fields); err != nil {
				lg.LogError(err, nil)
			}
			lg.LogReconcile(string(snap.View), fields)

			if snap.Err != nil {
				failures[snap.View]++
				if failures[snap.View] == pollFailureAlertThreshold {
					_ = alerts.SendWarning("view poll failing", map[string]interface{}{
						"view":  string(snap.View),
						"error": snap.Err.Error(),
					})
				}
			} else {
				failures[snap.View] = 0
			}
		}
	}
}

// followOrderTokens 周期性把订单引用的 token 并入订阅集。
func followOrderTokens(ctx context.Context, cfg config.AppConfig, store *portfolio.Store, mgr *feed.Manager) {
	refresh := time.Duration(cfg.Feed.RefreshSecond) * time.Second
	if refresh <= 0 {
		refresh = 10 * time.Second
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tokens := mergeTokens(cfg.Feed.Tokens, store.AllTokens())
			key := joinSorted(tokens)
			if key == last {
				continue
			}
			last = key
			mgr.SetTokens(tokens)
		}
	}
}

func mergeTokens(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, group := range [][]string{base, extra} {
		for _, tok := range group {
			if tok == "" || seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

func joinSorted(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	key := ""
	for _, t := range sorted {
		key += t + ","
	}
	return key
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orDefaultSlice(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}
