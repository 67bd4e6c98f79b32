package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/splax/lumia/internal/catalog"
	"github.com/splax/lumia/internal/dashboard"
	httpx "github.com/splax/lumia/internal/http"
	"github.com/splax/lumia/internal/notify"
	"github.com/splax/lumia/internal/upstream"
	"github.com/splax/lumia/internal/upstream/github"
	"github.com/splax/lumia/internal/upstream/vercel"
	"github.com/splax/lumia/internal/ws"
	"github.com/splax/lumia/pkg/config"
	"github.com/splax/lumia/pkg/logger"
)

var buildVersion = "dev"

func main() {
	cfg, err := config.LoadDashboardConfig()
	if err != nil {
		logger.New("dashboard", slog.LevelInfo).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("dashboard", logger.ParseLevel(cfg.LogLevel)).With("env", cfg.Environment, "version", buildVersion)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	upstreams, err := buildUpstreams(cfg)
	if err != nil {
		log.Error("failed to configure upstream clients", "error", err)
		os.Exit(1)
	}
	warnMissing(log, cfg)

	toastHub := ws.NewHub()
	defer toastHub.Close()
	toasts := notify.New(toastHub, cfg.ToastHistory, log)

	ctrl := dashboard.New(upstreams, toasts, catalog.Default(), log, cfg)
	if err := ctrl.Start(ctx); err != nil {
		log.Error("failed to start polling", "error", err)
		os.Exit(1)
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router, err := httpx.NewRouter(log, ctrl, toasts,
		httpx.WithRateLimiter(limiter),
		httpx.WithRefreshLimit(cfg.RefreshRateLimit),
	)
	if err != nil {
		log.Error("failed to build router", "error", err)
		os.Exit(1)
	}
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("dashboard server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stopController(log, ctrl)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	stopController(log, ctrl)
	log.Info("dashboard server stopped")
}

func stopController(log *slog.Logger, ctrl *dashboard.Controller) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Stop(ctx); err != nil {
		log.Error("polling shutdown failed", "error", err)
	}
}

func buildUpstreams(cfg config.DashboardConfig) (dashboard.Upstreams, error) {
	opts := []upstream.Option{
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithUserAgent("lumia-dashboard/" + buildVersion),
	}
	githubAPI, err := upstream.New(cfg.GitHub.APIURL, cfg.GitHub.Token, opts...)
	if err != nil {
		return dashboard.Upstreams{}, err
	}
	vercelAPI, err := upstream.New(cfg.Vercel.APIURL, cfg.Vercel.Token, opts...)
	if err != nil {
		return dashboard.Upstreams{}, err
	}
	gh := github.New(githubAPI, cfg.GitHub.Owner, cfg.GitHub.Repo)
	vc := vercel.New(vercelAPI, cfg.Vercel.ProjectID, cfg.Vercel.TeamID, vercel.WithDeploymentID(cfg.Vercel.DeploymentID))
	return dashboard.Upstreams{
		Deployments: gh,
		Firewall:    vc,
		Project:     vc,
		Logs:        vc,
	}, nil
}

func warnMissing(log *slog.Logger, cfg config.DashboardConfig) {
	if cfg.GitHub.Token == "" {
		log.Warn("GITHUB_TOKEN not set; deployment polls will be unauthenticated")
	}
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		log.Warn("GITHUB_OWNER/GITHUB_REPO not set; deployment polls will fail")
	}
	if cfg.Vercel.Token == "" {
		log.Warn("VERCEL_TOKEN not set; hosting polls will be unauthenticated")
	}
	if cfg.Vercel.ProjectID == "" {
		log.Warn("VERCEL_PROJECT_ID not set; firewall, project and log polls will fail")
	}
}
