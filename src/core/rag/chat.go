package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragdesk/src/log"
)

const DefaultTopK = 5

// ChatService answers queries from a session's documents and conversation memory.
type ChatService struct {
	embedder       Embedder
	embeddingModel string
	vectors        VectorStore
	memory         Memory
	generator      Generator
	bookings       BookingRepository
	topK           int
}

type ChatOption func(s *ChatService)

// WithTopK sets how many chunks are retrieved as context.
func WithTopK(k int) ChatOption {
	return func(s *ChatService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithBookings turns on booking extraction for queries that ask to book something.
func WithBookings(repo BookingRepository) ChatOption {
	return func(s *ChatService) {
		s.bookings = repo
	}
}

func NewChatService(embedder Embedder, embeddingModel string, vectors VectorStore, memory Memory, generator Generator, opts ...ChatOption) (*ChatService, error) {
	s := &ChatService{
		embedder:       embedder,
		embeddingModel: embeddingModel,
		vectors:        vectors,
		memory:         memory,
		generator:      generator,
		topK:           DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	case s.embeddingModel == "":
		return nil, fmt.Errorf("embedding model is required")
	case s.vectors == nil:
		return nil, fmt.Errorf("vector store is required")
	case s.memory == nil:
		return nil, fmt.Errorf("conversation memory is required")
	case s.generator == nil:
		return nil, fmt.Errorf("generator is required")
	}
	return s, nil
}

// Ask answers a query within a session and records the exchange in memory.
func (s *ChatService) Ask(ctx context.Context, sessionID, query string) (string, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query and session id are required", ErrInvalidRequest)
	}

	if s.bookings != nil && IsBookingRequest(query) {
		return s.book(ctx, sessionID, query)
	}

	history, err := s.memory.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation memory: %w", err)
	}

	embedding, err := s.embedder.GetEmbedding(ctx, s.embeddingModel, query)
	if err != nil {
		return "", fmt.Errorf("failed to get query embedding: %w", err)
	}

	contextChunks, err := s.vectors.Search(ctx, sessionID, embedding, query, s.topK)
	if err != nil {
		return "", fmt.Errorf("failed to search context: %w", err)
	}

	prompt, err := renderPrompt("answer", AnswerPromptTmpl, struct {
		Context string
		History []MemoryEntry
		Query   string
	}{
		Context: strings.Join(contextChunks, "\n"),
		History: history,
		Query:   query,
	})
	if err != nil {
		return "", err
	}
	log.Debug("generating answer", "session_id", sessionID, "context_chunks", len(contextChunks), "history", len(history))

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	if err := s.remember(ctx, sessionID, query, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// History returns the conversation of a session, oldest first.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]MemoryEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}
	return s.memory.History(ctx, sessionID)
}

// Bookings returns the bookings made in a session.
func (s *ChatService) Bookings(ctx context.Context, sessionID string) ([]Booking, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}
	if s.bookings == nil {
		return []Booking{}, nil
	}
	return s.bookings.ListBySession(ctx, sessionID)
}

func (s *ChatService) book(ctx context.Context, sessionID, query string) (string, error) {
	booking := ParseBooking(ctx, s.generator, query)
	booking.SessionID = sessionID
	booking.Query = query

	// The confirmation is still returned when the write fails.
	if err := s.bookings.Create(ctx, &booking); err != nil {
		log.Error(err, "failed to save booking", "session_id", sessionID)
	}

	answer := fmt.Sprintf("Interview booked for %s on %s at %s", booking.Name, booking.Date, booking.Time)
	if err := s.remember(ctx, sessionID, query, answer); err != nil {
		return "", err
	}
	return answer, nil
}

func (s *ChatService) remember(ctx context.Context, sessionID, query, answer string) error {
	entry := MemoryEntry{
		Query:     query,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.memory.Append(ctx, sessionID, entry); err != nil {
		return fmt.Errorf("failed to save conversation memory: %w", err)
	}
	return nil
}
