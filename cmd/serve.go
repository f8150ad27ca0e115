package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v1 "ragdesk/handler/http/v1"
	"ragdesk/src/infrastructure/job"
	"ragdesk/src/log"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ragdesk HTTP server",
	Long: `The serve command starts an HTTP server for uploading documents and
asking questions about them. Reindex jobs run in process unless amqp.enabled
is set, in which case they are published for the worker command.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger := log.NewWatermillAdapter()
	jobRepo := job.NewPostgresJobRepository(svc.db)
	reindexTask := job.NewReindexTask(svc.documents)

	var publisher message.Publisher
	if viper.GetBool("amqp.enabled") {
		amqpPublisher, err := amqp.NewPublisher(amqp.NewDurableQueueConfig(viper.GetString("amqp.url")), logger)
		if err != nil {
			return fmt.Errorf("failed to create publisher: %w", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		defer pubSub.Close()
		publisher = pubSub

		router, err := job.NewRouter(pubSub, pubSub, job.NewJobService(pubSub, jobRepo, logger, reindexTask), logger)
		if err != nil {
			return fmt.Errorf("failed to create job router: %w", err)
		}
		go func() {
			if err := router.Run(ctx); err != nil {
				log.Error(err, "Job router stopped")
			}
		}()
		<-router.Running()
	}
	jobService := job.NewJobService(publisher, jobRepo, logger, reindexTask)

	handler := v1.NewHandler(svc.documents, svc.chat, jobService, svc.healthChecks())

	if !viper.GetBool("log.development") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
			cancel()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}
	cancel()

	log.Info("Server exited")
	return nil
}
