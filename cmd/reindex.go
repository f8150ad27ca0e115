package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ragdesk/src/core/chunker"
	"ragdesk/src/infrastructure/job"
	"ragdesk/src/log"
)

var reindexStrategy string

var reindexCmd = &cobra.Command{
	Use:   "reindex [document id]",
	Short: "Enqueue a reindex job for the worker",
	Args:  cobra.ExactArgs(1),
	RunE:  runReindex,
}

func init() {
	reindexCmd.Flags().StringVar(&reindexStrategy, "strategy", string(chunker.DefaultStrategy), "chunking strategy (small or recursive)")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	documentID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || documentID <= 0 {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	logger := log.NewWatermillAdapter()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	defer sqlDB.Close()

	publisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	defer publisher.Close()

	jobService := job.NewJobService(publisher, job.NewPostgresJobRepository(db), logger, nil)

	strategy := string(chunker.ParseStrategy(reindexStrategy))
	j, err := jobService.EnqueueReindex(context.Background(), documentID, strategy)
	if err != nil {
		return fmt.Errorf("failed to enqueue reindex job: %w", err)
	}

	log.Info("Enqueued reindex job", "job_id", j.ID, "document_id", documentID, "strategy", strategy)
	return nil
}
