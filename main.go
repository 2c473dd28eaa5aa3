package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"moobot/app/client/llm"
	"moobot/app/config"
	"moobot/app/service/api"
	"moobot/app/service/chat"
	"moobot/app/service/classifier"
	"moobot/app/service/dataset"
	"moobot/app/service/engine"
	"moobot/app/service/executor"
	"moobot/app/service/mcpserver"
	"moobot/app/service/presenter"
	"moobot/app/service/queue"
	"moobot/app/service/responder"
	"moobot/app/service/synth"
	"moobot/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, llm.NewClients)
	do.Provide(di, dataset.New)
	do.Provide(di, chat.NewStore)
	do.Provide(di, queue.New)
	do.Provide(di, classifier.New)
	do.Provide(di, synth.New)
	do.Provide(di, executor.New)
	do.Provide(di, responder.New)
	do.Provide(di, presenter.New)
	do.Provide(di, engine.New)
	do.Provide(di, api.New)
	do.Provide(di, mcpserver.New)

	table := do.MustInvoke[*dataset.Service](di).Table()
	slog.Info("Service started",
		"rows", table.Len(),
		"cows", len(table.Cows()),
		"mode", cfg.Query.Mode)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		do.MustInvoke[*engine.Service](di).Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return do.MustInvoke[*api.Server](di).Run(groupCtx)
	})
	if cfg.MCP.Enabled {
		group.Go(func() error {
			return do.MustInvoke[*mcpserver.Server](di).Run(groupCtx)
		})
	}

	if err = group.Wait(); err != nil {
		slog.Error("Service stopped", "error", err)
	}
}
