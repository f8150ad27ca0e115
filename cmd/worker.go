package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ragdesk/src/infrastructure/job"
	"ragdesk/src/log"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background reindex worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := log.NewWatermillAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Initialize AMQP publisher
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(subscriberConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer amqpSubscriber.Close()

	jobService := job.NewJobService(
		amqpPublisher,
		job.NewPostgresJobRepository(svc.db),
		logger,
		job.NewReindexTask(svc.documents),
	)

	router, err := job.NewRouter(amqpSubscriber, amqpPublisher, jobService, logger)
	if err != nil {
		return fmt.Errorf("failed to create job router: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-c:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("job router stopped: %w", err)
		}
		return nil
	}

	log.Info("Shutting down...")
	cancel()
	if err := <-errCh; err != nil {
		log.Error(err, "Router stopped with error")
	}
	log.Info("Router stopped")

	return nil
}
