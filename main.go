package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vivianshong/cacheproxy/internal/acceptor"
	"github.com/vivianshong/cacheproxy/internal/admin"
	"github.com/vivianshong/cacheproxy/internal/admission"
	"github.com/vivianshong/cacheproxy/internal/blocklist"
	"github.com/vivianshong/cacheproxy/internal/cache"
	"github.com/vivianshong/cacheproxy/internal/config"
	"github.com/vivianshong/cacheproxy/internal/connpool"
	"github.com/vivianshong/cacheproxy/internal/handler"
	"github.com/vivianshong/cacheproxy/internal/queue"
	"github.com/vivianshong/cacheproxy/internal/reqlog"
	"github.com/vivianshong/cacheproxy/internal/stats"
	"github.com/vivianshong/cacheproxy/internal/workerpool"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage: proxy <port>")
		os.Exit(1)
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil || port < 1 || port > 65535 {
		fmt.Println("usage: proxy <port>")
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()

	cfg := config.FromEnv()

	st := stats.New()
	respCache := cache.New(cfg.CacheMaxTotal, cfg.CacheMaxEntry)
	pool := connpool.New(cfg.PoolCapacity, cfg.PoolIdleMaxAge)
	workQueue := queue.New(cfg.QueueCapacity)
	adm := admission.New(cfg.MaxClients)
	requestLog := reqlog.New(100)

	blocked := blocklist.New(cfg.BlocklistPath, logger)
	if err := blocked.Load(); err != nil {
		logger.Warn().Err(err).Msg("could not load blocklist, starting fresh")
	}
	watcherStop := make(chan struct{})
	go blocked.Watch(watcherStop)

	h := &handler.Handler{
		Cache:     respCache,
		Pool:      pool,
		Stats:     st,
		Cfg:       cfg,
		Logger:    logger,
		Blocklist: blocked,
		ReqLog:    requestLog,
	}

	workers := workerpool.New(cfg.Workers, workQueue, adm, h)
	workers.Start()

	listener, err := acceptor.Listen(port)
	if err != nil {
		logger.Fatal().Err(err).Int("port", port).Msg("listen failed")
	}
	acc := &acceptor.Acceptor{
		Listener:  listener,
		Queue:     workQueue,
		Admission: adm,
		Ident:     cfg.ProxyIdent,
		Logger:    logger,
	}
	go acc.Run()
	logger.Info().Int("port", port).Int("workers", cfg.Workers).Msg("proxy listening")

	adminSrv := &admin.Server{
		Stats:     st,
		Cache:     respCache,
		Blocklist: blocked,
		ReqLog:    requestLog,
		Metrics:   admin.NewMetrics(st, respCache, pool, workQueue, adm),
		Logger:    logger,
	}
	httpSrv := &http.Server{Addr: cfg.AdminAddr, Handler: adminSrv.Router()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server failed")
		}
	}()
	logger.Info().Str("addr", cfg.AdminAddr).Msg("management console listening")

	printStats := func() {
		fmt.Println(st.Snapshot().Report(respCache.TotalBytes()))
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+cfg.StatsInterval.String(), printStats); err != nil {
		logger.Warn().Err(err).Msg("could not schedule stats report")
	}
	scheduler.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	// Stop accepting, wake every blocked producer and consumer, and let
	// in-flight requests run to completion before tearing anything down.
	listener.Close()
	workQueue.Shutdown()
	workers.Wait()

	scheduler.Stop()
	close(watcherStop)
	pool.Drain()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)

	printStats()
}
