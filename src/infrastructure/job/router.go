package job

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// PoisonTopic receives job messages that still fail after all retries
const PoisonTopic = "jobs_poison"

const (
	DefaultMaxRetries    = 3
	DefaultRetryInterval = time.Second
)

// Handle processes one job message. Permanent failures are logged and acked
// so they leave the queue; everything else is returned for retry.
func (s *JobService) Handle(msg *message.Message) error {
	err := s.ProcessJobMessage(msg)
	if errors.Is(err, ErrPermanent) {
		s.logger.Error("Dropping job message", err, watermill.LogFields{
			"message_uuid": msg.UUID,
		})
		return nil
	}
	return err
}

type routerConfig struct {
	maxRetries    int
	retryInterval time.Duration
}

type RouterOption func(c *routerConfig)

// WithRetry sets how often and how quickly a failing job is retried before it
// is moved to the poison topic.
func WithRetry(maxRetries int, interval time.Duration) RouterOption {
	return func(c *routerConfig) {
		c.maxRetries = maxRetries
		c.retryInterval = interval
	}
}

// NewRouter wires the job processor to a subscriber on the jobs topic. A
// message that exhausts its retries is published on PoisonTopic through
// poisonPublisher and acked, so no subscriber redelivers it.
func NewRouter(subscriber message.Subscriber, poisonPublisher message.Publisher, service *JobService, logger watermill.LoggerAdapter, opts ...RouterOption) (*message.Router, error) {
	cfg := routerConfig{
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	poisonQueue, err := middleware.PoisonQueue(poisonPublisher, PoisonTopic)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		poisonQueue,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      cfg.maxRetries,
			InitialInterval: cfg.retryInterval,
			Multiplier:      2,
			MaxInterval:     30 * cfg.retryInterval,
			Logger:          logger,
		}.Middleware,
		middleware.Recoverer,
	)

	router.AddNoPublisherHandler(
		"job_processor",
		JobsTopic,
		subscriber,
		service.Handle,
	)

	return router, nil
}
