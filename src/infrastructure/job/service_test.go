package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/src/core/rag"
	"ragdesk/src/infrastructure/job"
)

type memoryJobRepo struct {
	mu     sync.Mutex
	nextID int
	jobs   map[int]*job.Job
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{jobs: map[int]*job.Job{}}
}

func (r *memoryJobRepo) Create(_ context.Context, taskType string, payload json.RawMessage) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	j := &job.Job{ID: r.nextID, TaskType: taskType, Payload: payload, Status: job.JobStatusPending}
	r.jobs[j.ID] = j
	cp := *j
	return &cp, nil
}

func (r *memoryJobRepo) Get(_ context.Context, id int) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *memoryJobRepo) UpdateStatus(_ context.Context, id int, status job.JobStatus, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	j.Status = status
	j.Error = errMsg
	return nil
}

func (r *memoryJobRepo) status(id int) job.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id].Status
}

type fakeReindexer struct {
	mu       sync.Mutex
	calls    []job.ReindexPayload
	err      error
	finished chan struct{}
}

func (f *fakeReindexer) Reindex(_ context.Context, documentID int64, strategy string) (*rag.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, job.ReindexPayload{DocumentID: documentID, Strategy: strategy})
	f.mu.Unlock()
	if f.finished != nil {
		defer func() { f.finished <- struct{}{} }()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &rag.Document{ID: documentID, ChunkStrategy: strategy, ChunkCount: 2}, nil
}

func (f *fakeReindexer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, reindexer job.Reindexer) (*job.JobService, *memoryJobRepo, *gochannel.GoChannel) {
	t.Helper()
	logger := watermill.NopLogger{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, logger)
	t.Cleanup(func() { _ = pubSub.Close() })
	repo := newMemoryJobRepo()
	return job.NewJobService(pubSub, repo, logger, job.NewReindexTask(reindexer)), repo, pubSub
}

func TestEnqueueAndProcessReindex(t *testing.T) {
	reindexer := &fakeReindexer{}
	svc, repo, pubSub := newTestService(t, reindexer)
	ctx := context.Background()

	messages, err := pubSub.Subscribe(ctx, job.JobsTopic)
	require.NoError(t, err)

	enqueued, err := svc.EnqueueReindex(ctx, 42, "small")
	require.NoError(t, err)
	assert.Equal(t, job.TaskTypeReindex, enqueued.TaskType)
	assert.Equal(t, job.JobStatusPending, repo.status(enqueued.ID))

	var msg *message.Message
	select {
	case msg = <-messages:
	case <-time.After(5 * time.Second):
		t.Fatal("job message was not published")
	}

	require.NoError(t, svc.ProcessJobMessage(msg))
	msg.Ack()

	assert.Equal(t, job.JobStatusCompleted, repo.status(enqueued.ID))
	assert.Equal(t, []job.ReindexPayload{{DocumentID: 42, Strategy: "small"}}, reindexer.calls)
}

func TestProcessFailedReindex(t *testing.T) {
	reindexer := &fakeReindexer{err: rag.ErrDocumentNotFound}
	svc, repo, _ := newTestService(t, reindexer)

	enqueued, err := repo.Create(context.Background(), job.TaskTypeReindex, json.RawMessage(`{"document_id":7,"strategy":"recursive"}`))
	require.NoError(t, err)

	payload, err := json.Marshal(job.JobMessage{JobID: enqueued.ID, TaskType: enqueued.TaskType, Payload: enqueued.Payload})
	require.NoError(t, err)

	err = svc.ProcessJobMessage(message.NewMessage(watermill.NewUUID(), payload))
	assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
	assert.ErrorIs(t, err, job.ErrPermanent)

	got, err := repo.Get(context.Background(), enqueued.ID)
	require.NoError(t, err)
	assert.Equal(t, job.JobStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "Document not found")
}

func TestHandleDropsPermanentFailures(t *testing.T) {
	svc, repo, _ := newTestService(t, &fakeReindexer{})

	tests := []struct {
		name    string
		payload []byte
	}{
		{"malformed message", []byte("{not json")},
		{"unknown job", mustJSON(t, job.JobMessage{JobID: 999})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message.NewMessage(watermill.NewUUID(), tt.payload)
			assert.ErrorIs(t, svc.ProcessJobMessage(msg), job.ErrPermanent)
			assert.NoError(t, svc.Handle(msg))
		})
	}

	unknown, err := repo.Create(context.Background(), "translate", json.RawMessage(`{}`))
	require.NoError(t, err)
	msg := message.NewMessage(watermill.NewUUID(), mustJSON(t, job.JobMessage{JobID: unknown.ID}))
	assert.NoError(t, svc.Handle(msg))
	assert.Equal(t, job.JobStatusFailed, repo.status(unknown.ID))
}

func TestRouterProcessesJobs(t *testing.T) {
	reindexer := &fakeReindexer{finished: make(chan struct{}, 1)}
	svc, _, pubSub := newTestService(t, reindexer)

	router, err := job.NewRouter(pubSub, pubSub, svc, watermill.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()

	_, err = svc.EnqueueReindex(context.Background(), 5, "recursive")
	require.NoError(t, err)

	select {
	case <-reindexer.finished:
	case <-time.After(5 * time.Second):
		t.Fatal("router did not process the job")
	}
	cancel()
	require.NoError(t, router.Close())
}

func TestReindexTaskPermanentErrors(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		reindexErr    error
		wantPermanent bool
	}{
		{name: "malformed payload", payload: `{"document_id":`, wantPermanent: true},
		{name: "missing document id", payload: `{"strategy":"small"}`, wantPermanent: true},
		{name: "document deleted", payload: `{"document_id":7}`, reindexErr: rag.ErrDocumentNotFound, wantPermanent: true},
		{name: "no text", payload: `{"document_id":7}`, reindexErr: fmt.Errorf("wrapped: %w", rag.ErrEmptyDocument), wantPermanent: true},
		{name: "backend down", payload: `{"document_id":7}`, reindexErr: errors.New("ollama down"), wantPermanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := job.NewReindexTask(&fakeReindexer{err: tt.reindexErr})

			err := task.HandleReindexTask(context.Background(), json.RawMessage(tt.payload))
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, errors.Is(err, job.ErrPermanent))
			if tt.reindexErr != nil {
				assert.ErrorIs(t, err, tt.reindexErr)
			}
		})
	}
}

func TestRouterStopsRetryingFailedJobs(t *testing.T) {
	reindexer := &fakeReindexer{err: errors.New("ollama down")}
	svc, repo, pubSub := newTestService(t, reindexer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poisoned, err := pubSub.Subscribe(ctx, job.PoisonTopic)
	require.NoError(t, err)

	router, err := job.NewRouter(pubSub, pubSub, svc, watermill.NopLogger{}, job.WithRetry(2, 10*time.Millisecond))
	require.NoError(t, err)
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()

	enqueued, err := svc.EnqueueReindex(context.Background(), 5, "recursive")
	require.NoError(t, err)

	select {
	case msg := <-poisoned:
		assert.Contains(t, msg.Metadata.Get(middleware.ReasonForPoisonedKey), "ollama down")
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("failed job was not moved to the poison topic")
	}

	// one attempt plus two retries, and no redelivery afterwards
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 3, reindexer.callCount())
	assert.Equal(t, job.JobStatusFailed, repo.status(enqueued.ID))

	cancel()
	require.NoError(t, router.Close())
}

func TestRouterAcksPermanentFailuresWithoutRetry(t *testing.T) {
	reindexer := &fakeReindexer{err: rag.ErrDocumentNotFound}
	svc, repo, pubSub := newTestService(t, reindexer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, err := job.NewRouter(pubSub, pubSub, svc, watermill.NopLogger{}, job.WithRetry(2, 10*time.Millisecond))
	require.NoError(t, err)
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()

	enqueued, err := svc.EnqueueReindex(context.Background(), 9, "small")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return repo.status(enqueued.ID) == job.JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, reindexer.callCount())

	cancel()
	require.NoError(t, router.Close())
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
