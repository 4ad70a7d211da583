// The agent keeps a device's offline queue drained: it watches
// connectivity, replays queued submissions against the backend on an
// interval, and serves a small loopback status API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sekolahmbg/mbg-client/api"
	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/offline"
	"github.com/sekolahmbg/mbg-client/core/session"
	logsvc "github.com/sekolahmbg/mbg-client/services/logger"
	"github.com/sekolahmbg/mbg-client/services/netcheck"
	"github.com/sekolahmbg/mbg-client/storage/kv"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	std := log.New(os.Stdout, "AGENT : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	store, err := kv.NewFileStore(conf.DataDir, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	secrets := kv.NewSecretStore(store, conf.DataDir, logger)

	sessions := session.NewStore(store, conf.SessionKey, logger)
	resolver := netmode.NewResolver(store, conf)
	client := api.NewClient(conf, sessions, resolver, secrets, logger)

	queue := offline.NewQueue(store)
	checker := netcheck.NewChecker(resolver, sessions)
	engine := offline.NewEngine(queue, client, checker, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Agent initializing : version %q", conf.Build))
	defer logger.Info("Agent stopped")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startDrainLoop(ctx, conf, engine, checker, logger)

	// =========================================================================
	// Start Status Server

	server := newStatusServer(serverDeps{
		Conf:     conf,
		Logger:   logger,
		Sessions: sessions,
		Resolver: resolver,
		Engine:   engine,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal(fmt.Sprintf("status server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		cancel()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := server.Stop(stopCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop status server gracefully: %v", err), err)
		}
	}
}

// startDrainLoop replays the queue on an interval whenever the backend is
// reachable. Items past the warn threshold are reported but never dropped.
func startDrainLoop(
	ctx context.Context,
	conf *core.Config,
	engine *offline.Engine,
	checker *netcheck.Checker,
	logger core.Logger,
) {
	interval := conf.Agent.SyncInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !checker.Online(ctx) {
					continue
				}
				if ok := engine.Sync(ctx); !ok {
					warnStuckItems(engine, conf.Agent.TriesWarnThreshold, logger)
				}
			}
		}
	}()
}

func warnStuckItems(engine *offline.Engine, threshold int, logger core.Logger) {
	if threshold <= 0 {
		return
	}
	for _, item := range engine.Queue().All() {
		if item.Tries >= threshold {
			logger.Warn("queued item looks stuck", map[string]interface{}{
				"id": item.ID, "type": item.Type, "tries": item.Tries,
				"createdAt": item.CreatedAt,
			})
		}
	}
}
