package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aeo-platform/aeo/backend/internal/bootstrap"
	"github.com/aeo-platform/aeo/backend/internal/queue"
	"github.com/aeo-platform/aeo/backend/internal/util"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
	"github.com/aeo-platform/aeo/backend/pkg/store"
	pgstore "github.com/aeo-platform/aeo/backend/pkg/store/pgx"
)

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func main() {
	util.LoadEnv()
	bootstrap.InitLogger("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GraphAiClient
	aiClient, err := bootstrap.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}
	guarded := bootstrap.Guard(aiClient)

	// Init pgx client
	pgConn, err := bootstrap.NewPool(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	catalog := pgstore.NewCatalogDBStorageWithConnection(pgConn)
	g := graph.New(graph.WithPersister(catalog))

	orchestrator, err := bootstrap.NewAnalysis(bootstrap.AnalysisParams{
		Client:         guarded,
		ReasoningModel: aiClient.ReasoningModel(),
		Graph:          g,
		Storage:        catalog,
		Pool:           pgConn,
	})
	if err != nil {
		logger.Fatal("Could not create relationship analysis", "err", err)
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.BatchQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewPublisher(ch)

	handler := &queue.BatchHandler{
		Orchestrator: orchestrator,
		Refresh: func(ctx context.Context) error {
			return store.RefreshGraph(ctx, catalog, g)
		},
		Notify: publisher.Notify,
	}

	// Batches run one at a time; each one already fans out over BATCH_WORKERS.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.BatchQueue,
		queue.BatchQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.BatchQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.BatchQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.BatchQueue)
				return
			}

			startTime := time.Now()
			logger.Info("Received message", "queue", queue.BatchQueue)

			if err := handler.ProcessBatchMessage(ctx, msg.Body); err != nil {
				logger.Error("Error processing message", "queue", queue.BatchQueue, "err", err)
				// The shutdown context is gone; rerouting must still happen.
				queue.HandleProcessingError(context.WithoutCancel(ctx), consumerCh, msg, queue.BatchQueue, err)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.BatchQueue)
			}

			metrics := aiClient.GetMetrics()
			logger.Info(
				"AI Metrics",
				"input_tokens", metrics.InputTokens,
				"output_tokens", metrics.OutputTokens,
				"total_tokens", metrics.TotalTokens,
				"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
			)
			logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
			logger.Info("Waiting for next message")
			aiClient.ResetMetrics()
		}
	}
}
