package main

import (
	"context"
	"errors"
	_ "time/tzdata"

	"laporan/internal/amqp"
	"laporan/internal/app"
	"laporan/internal/cli"
	"laporan/internal/config"
	"laporan/internal/log"
	"laporan/internal/worker"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.InfoContext(context.Background(), "Starting laporan-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	stack, err := app.Build(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(ctx, logger, "Failed to build report stack", err, "backend", cfg.DataBackend)
	}
	defer stack.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReplyQueue)
	if err != nil {
		cli.Fatal(ctx, logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	logger.InfoContext(ctx, "Consuming report requests",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"concurrency", cfg.WorkerConcurrency)

	handler := worker.NewReportHandler(stack.Reports, client)
	if err := client.Run(ctx, cfg.WorkerConcurrency, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(ctx, "Message consumption failed", log.FieldError, err)
	}

	logger.InfoContext(context.Background(), "Worker shutdown complete")
}
