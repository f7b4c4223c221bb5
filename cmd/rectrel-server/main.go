package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/rectrel/internal/cache"
	"github.com/mohammed-shakir/rectrel/internal/cache/admission"
	"github.com/mohammed-shakir/rectrel/internal/cache/redisstore"
	"github.com/mohammed-shakir/rectrel/internal/cache/resultcache"
	"github.com/mohammed-shakir/rectrel/internal/core/config"
	"github.com/mohammed-shakir/rectrel/internal/core/health"
	"github.com/mohammed-shakir/rectrel/internal/core/observability"
	"github.com/mohammed-shakir/rectrel/internal/core/router"
	"github.com/mohammed-shakir/rectrel/internal/core/server"
	"github.com/mohammed-shakir/rectrel/internal/engine"
	"github.com/mohammed-shakir/rectrel/internal/logger"
	"github.com/mohammed-shakir/rectrel/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "rectrel-server",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	eng, err := buildEngine(cfg)
	if err != nil {
		appLog.Error("engine setup failed", "err", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc, ready, closeCache, err := buildCache(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("cache setup failed", "err", err)
		return 1
	}
	defer closeCache()

	p := metrics.Init(metrics.Config{Enabled: cfg.MetricsEnabled, Version: Version})
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = p.Handler()
	}

	appLog.Info("starting rectrel-server",
		"addr", cfg.Addr,
		"version", Version,
		"overlap_mode", cfg.Engine.Overlap,
		"grouping_mode", cfg.Engine.Grouping,
		"cache", cacheLabel(cfg))

	svc := router.NewService(appLog, eng, rc, router.Limits{
		MaxRectangles: cfg.MaxRectangles,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})
	h := server.Handler(appLog, svc, metricsHandler, ready...)

	if err := server.Run(ctx, cfg, appLog, h); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func buildEngine(cfg config.Config) (*engine.Engine, error) {
	overlap, err := engine.ParseOverlapMode(cfg.Engine.Overlap)
	if err != nil {
		return nil, err
	}
	grouping, err := engine.ParseGroupingMode(cfg.Engine.Grouping)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Epsilon:  cfg.Engine.Epsilon,
		Overlap:  overlap,
		Grouping: grouping,
		Observe: func(query string, _ int, d time.Duration) {
			observability.ObserveQuery(query, d.Seconds())
		},
	}), nil
}

// buildCache returns a nil cache when caching is disabled. The memory tier is
// always first; redis sits behind it when selected.
func buildCache(ctx context.Context, cfg config.Config, l *slog.Logger) (*resultcache.Cache, []health.Check, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, nil, func() {}, nil
	}
	tiers := []resultcache.Tier{{Name: "memory", Store: cache.NewMemory(cfg.Cache.Size, cfg.Cache.TTL)}}
	var checks []health.Check
	closeFn := func() {}

	if cfg.Cache.Driver == "redis" {
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		rdb, err := redisstore.New(dialCtx, cfg.Cache.RedisAddr, redisOptions(cfg.Cache)...)
		if err != nil {
			return nil, nil, nil, err
		}
		tiers = append(tiers, resultcache.Tier{Name: "redis", Store: rdb})
		checks = append(checks, health.Check{Name: "redis", Probe: rdb.Ping})
		closeFn = func() {
			if err := rdb.Close(); err != nil {
				l.Warn("redis close", "err", err)
			}
		}
	}

	rcfg := resultcache.Config{TTL: cfg.Cache.TTL, OpTimeout: cfg.Cache.OpTimeout}
	if cfg.Cache.AdmitThreshold > 0 {
		pol := admission.New(cfg.Cache.AdmitThreshold, cfg.Cache.HotHalfLife)
		rcfg.Admission = pol
		go prune(ctx, pol, cfg.Cache.HotHalfLife)
	}
	rc := resultcache.New(l, rcfg, tiers...)
	return rc, checks, closeFn, nil
}

func redisOptions(c config.CacheCfg) []redisstore.Option {
	opts := []redisstore.Option{redisstore.WithPoolSize(c.RedisPoolSize)}
	if c.RedisDialTimeout > 0 {
		opts = append(opts, redisstore.WithDialTimeout(c.RedisDialTimeout))
	}
	if c.RedisReadTimeout > 0 {
		opts = append(opts, redisstore.WithReadTimeout(c.RedisReadTimeout))
	}
	if c.RedisWriteTimeout > 0 {
		opts = append(opts, redisstore.WithWriteTimeout(c.RedisWriteTimeout))
	}
	return opts
}

// prune keeps the admission table from growing with one-off sets
func prune(ctx context.Context, p *admission.Policy, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Prune(0.01)
		}
	}
}

func cacheLabel(cfg config.Config) string {
	if !cfg.Cache.Enabled {
		return "off"
	}
	return cfg.Cache.Driver
}
