package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const JobsTopic = "jobs"

// ErrPermanent marks failures that retrying cannot fix
var ErrPermanent = errors.New("permanent job failure")

type JobService struct {
	publisher   message.Publisher
	repo        JobRepository
	logger      watermill.LoggerAdapter
	reindexTask *ReindexTask
}

type JobMessage struct {
	JobID    int             `json:"job_id"`
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

func NewJobService(
	publisher message.Publisher,
	repo JobRepository,
	logger watermill.LoggerAdapter,
	reindexTask *ReindexTask,
) *JobService {
	return &JobService{
		publisher:   publisher,
		repo:        repo,
		logger:      logger,
		reindexTask: reindexTask,
	}
}

// EnqueueJob creates a new job and publishes it to the message queue
func (s *JobService) EnqueueJob(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	job, err := s.repo.Create(ctx, taskType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	jobMsg := JobMessage{
		JobID:    job.ID,
		TaskType: job.TaskType,
		Payload:  job.Payload,
	}

	msgPayload, err := json.Marshal(jobMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	msg.SetContext(ctx)
	if err := s.publisher.Publish(JobsTopic, msg); err != nil {
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	s.logger.Info("Job enqueued", watermill.LogFields{
		"job_id":    job.ID,
		"task_type": job.TaskType,
	})
	return job, nil
}

// EnqueueReindex schedules re-chunking of a document with another strategy
func (s *JobService) EnqueueReindex(ctx context.Context, documentID int64, strategy string) (*Job, error) {
	payload, err := json.Marshal(ReindexPayload{DocumentID: documentID, Strategy: strategy})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reindex payload: %w", err)
	}
	return s.EnqueueJob(ctx, TaskTypeReindex, payload)
}

// ProcessJobMessage processes a job message from the queue
func (s *JobService) ProcessJobMessage(msg *message.Message) error {
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Payload, &jobMsg); err != nil {
		return fmt.Errorf("%w: failed to unmarshal job message: %v", ErrPermanent, err)
	}

	ctx := msg.Context()

	job, err := s.repo.Get(ctx, jobMsg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("%w: job not found: %d", ErrPermanent, jobMsg.JobID)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusRunning, nil); err != nil {
		return fmt.Errorf("failed to update job status to running: %w", err)
	}

	err = s.processJob(ctx, job)

	if err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, &errStr); updateErr != nil {
			s.logger.Error("Failed to update job status to failed", updateErr, watermill.LogFields{
				"job_id": job.ID,
			})
		}
		return fmt.Errorf("failed to process job: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	return nil
}

// processJob handles different types of jobs
func (s *JobService) processJob(ctx context.Context, job *Job) error {
	switch job.TaskType {
	case TaskTypeReindex:
		if s.reindexTask == nil {
			return fmt.Errorf("%w: no reindex task configured", ErrPermanent)
		}
		return s.reindexTask.HandleReindexTask(ctx, job.Payload)
	default:
		return fmt.Errorf("%w: unknown task type: %s", ErrPermanent, job.TaskType)
	}
}
