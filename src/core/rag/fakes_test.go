package rag_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"ragdesk/src/core/rag"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, filename string, content []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(content), nil
}

type fakeEmbedder struct {
	calls []string
	empty bool
	err   error
}

func (f *fakeEmbedder) GetEmbedding(_ context.Context, model, input string) ([]float32, error) {
	f.calls = append(f.calls, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return []float32{}, nil
	}
	return []float32{float32(len(input)), 1, 0}, nil
}

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeVectorStore struct {
	objects     map[string]map[string]rag.VectorObject
	ensured     []string
	results     []string
	searchTopK  int
	searchQuery string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{objects: map[string]map[string]rag.VectorObject{}}
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, sessionID string) error {
	f.ensured = append(f.ensured, sessionID)
	if f.objects[sessionID] == nil {
		f.objects[sessionID] = map[string]rag.VectorObject{}
	}
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, sessionID string, objects []rag.VectorObject) error {
	if f.objects[sessionID] == nil {
		return errors.New("collection does not exist")
	}
	for _, obj := range objects {
		f.objects[sessionID][obj.ID] = obj
	}
	return nil
}

func (f *fakeVectorStore) Delete(_ context.Context, sessionID string, ids []string) error {
	for _, id := range ids {
		delete(f.objects[sessionID], id)
	}
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, sessionID string, vector []float32, query string, topK int) ([]string, error) {
	f.searchTopK = topK
	f.searchQuery = query
	return f.results, nil
}

// contents returns the stored chunks of a session ordered by chunk index.
func (f *fakeVectorStore) contents(sessionID string) []string {
	objs := make([]rag.VectorObject, 0, len(f.objects[sessionID]))
	for _, obj := range f.objects[sessionID] {
		objs = append(objs, obj)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Index < objs[j].Index })
	out := make([]string, len(objs))
	for i, obj := range objs {
		out[i] = obj.Content
	}
	return out
}

type fakeObjectStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, object string, data []byte, contentType string) error {
	f.objects[bucket+"/"+object] = data
	f.contentTypes[bucket+"/"+object] = contentType
	return nil
}

func (f *fakeObjectStore) GetObject(_ context.Context, bucket, object string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeObjectStore) DeleteObject(_ context.Context, bucket, object string) error {
	delete(f.objects, bucket+"/"+object)
	delete(f.contentTypes, bucket+"/"+object)
	return nil
}

type fakeDocumentRepo struct {
	docs map[int64]*rag.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[int64]*rag.Document{}}
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *rag.Document) error {
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentRepo) Get(_ context.Context, id int64) (*rag.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocumentRepo) ListBySession(_ context.Context, sessionID string) ([]rag.Document, error) {
	out := []rag.Document{}
	for _, doc := range f.docs {
		if doc.SessionID == sessionID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentRepo) UpdateChunks(_ context.Context, id int64, strategy string, chunkCount int) error {
	doc, ok := f.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.ChunkStrategy = strategy
	doc.ChunkCount = chunkCount
	return nil
}

type fakeBookingRepo struct {
	bookings []rag.Booking
	err      error
}

func (f *fakeBookingRepo) Create(_ context.Context, b *rag.Booking) error {
	if f.err != nil {
		return f.err
	}
	f.bookings = append(f.bookings, *b)
	return nil
}

func (f *fakeBookingRepo) ListBySession(_ context.Context, sessionID string) ([]rag.Booking, error) {
	out := []rag.Booking{}
	for _, b := range f.bookings {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeMemory struct {
	mu      sync.Mutex
	entries map[string][]rag.MemoryEntry
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{entries: map[string][]rag.MemoryEntry{}}
}

func (f *fakeMemory) Append(_ context.Context, sessionID string, entry rag.MemoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[sessionID] = append(f.entries[sessionID], entry)
	return nil
}

func (f *fakeMemory) History(_ context.Context, sessionID string) ([]rag.MemoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rag.MemoryEntry{}, f.entries[sessionID]...), nil
}

func sentences(n int) string {
	return strings.Repeat("The quick brown fox jumps over the lazy dog. ", n)
}
