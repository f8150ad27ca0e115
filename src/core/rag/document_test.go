package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/src/core/chunker"
	"ragdesk/src/core/rag"
)

type documentFixture struct {
	extractor *fakeExtractor
	objects   *fakeObjectStore
	embedder  *fakeEmbedder
	vectors   *fakeVectorStore
	repo      *fakeDocumentRepo
	svc       *rag.DocumentService
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	f := &documentFixture{
		extractor: &fakeExtractor{},
		objects:   newFakeObjectStore(),
		embedder:  &fakeEmbedder{},
		vectors:   newFakeVectorStore(),
		repo:      newFakeDocumentRepo(),
	}
	svc, err := rag.NewDocumentService(f.extractor, f.objects, "documents", f.embedder, "nomic-embed-text", f.vectors, f.repo)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewDocumentServiceValidatesDependencies(t *testing.T) {
	_, err := rag.NewDocumentService(nil, newFakeObjectStore(), "documents", &fakeEmbedder{}, "m", newFakeVectorStore(), newFakeDocumentRepo())
	assert.Error(t, err)

	_, err = rag.NewDocumentService(&fakeExtractor{}, newFakeObjectStore(), "", &fakeEmbedder{}, "m", newFakeVectorStore(), newFakeDocumentRepo())
	assert.Error(t, err)
}

func TestDocumentServiceUpload(t *testing.T) {
	f := newDocumentFixture(t)
	text := sentences(20)

	doc, err := f.svc.Upload(context.Background(), rag.UploadRequest{
		SessionID:   "s1",
		Filename:    "notes.txt",
		Description: "meeting notes",
		Strategy:    "small",
		Content:     []byte(text),
	})
	require.NoError(t, err)

	want := chunker.Chunk(text, "small")
	require.NotEmpty(t, want)

	assert.NotZero(t, doc.ID)
	assert.Equal(t, "s1", doc.SessionID)
	assert.Equal(t, "small", doc.ChunkStrategy)
	assert.Equal(t, "nomic-embed-text", doc.EmbeddingModel)
	assert.Equal(t, len(want), doc.ChunkCount)
	assert.Equal(t, int64(len(text)), doc.Size)
	assert.True(t, strings.HasPrefix(doc.ObjectURL, "documents/s1/"))
	assert.True(t, strings.HasSuffix(doc.ObjectURL, ".txt"))

	// raw bytes are kept under the object URL
	stored, ok := f.objects.objects[doc.ObjectURL]
	require.True(t, ok)
	assert.Equal(t, []byte(text), stored)

	assert.Equal(t, want, f.embedder.calls)
	assert.Equal(t, []string{"s1"}, f.vectors.ensured)
	assert.Equal(t, want, f.vectors.contents("s1"))
	for i := range want {
		obj, ok := f.vectors.objects["s1"][rag.VectorID(doc.ID, i)]
		require.True(t, ok, "chunk %d", i)
		assert.Equal(t, i, obj.Index)
		assert.Equal(t, doc.ID, obj.DocumentID)
		assert.Equal(t, "notes.txt", obj.Filename)
	}

	saved, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "meeting notes", saved.Description)
}

func TestDocumentServiceUploadDefaultsToRecursive(t *testing.T) {
	f := newDocumentFixture(t)

	doc, err := f.svc.Upload(context.Background(), rag.UploadRequest{
		SessionID: "s1",
		Filename:  "a.txt",
		Strategy:  "bogus",
		Content:   []byte("Hello world."),
	})
	require.NoError(t, err)
	assert.Equal(t, "recursive", doc.ChunkStrategy)
	assert.Equal(t, 1, doc.ChunkCount)
}

func TestDocumentServiceUploadErrors(t *testing.T) {
	extractErr := errors.New("broken pdf")

	tests := []struct {
		name      string
		req       rag.UploadRequest
		extractor *fakeExtractor
		embedder  *fakeEmbedder
		wantErr   error
	}{
		{
			name:    "missing session",
			req:     rag.UploadRequest{Filename: "a.txt", Content: []byte("x")},
			wantErr: rag.ErrInvalidRequest,
		},
		{
			name:    "empty file",
			req:     rag.UploadRequest{SessionID: "s1", Filename: "a.txt"},
			wantErr: rag.ErrInvalidRequest,
		},
		{
			name:      "extraction failure",
			req:       rag.UploadRequest{SessionID: "s1", Filename: "a.pdf", Content: []byte("x")},
			extractor: &fakeExtractor{err: extractErr},
			wantErr:   extractErr,
		},
		{
			name:    "whitespace only",
			req:     rag.UploadRequest{SessionID: "s1", Filename: "a.txt", Content: []byte(" \n\t ")},
			wantErr: rag.ErrEmptyDocument,
		},
		{
			name:     "empty embedding",
			req:      rag.UploadRequest{SessionID: "s1", Filename: "a.txt", Content: []byte("Hello.")},
			embedder: &fakeEmbedder{empty: true},
			wantErr:  rag.ErrEmptyEmbedding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := tt.extractor
			if extractor == nil {
				extractor = &fakeExtractor{}
			}
			embedder := tt.embedder
			if embedder == nil {
				embedder = &fakeEmbedder{}
			}
			repo := newFakeDocumentRepo()
			objects := newFakeObjectStore()
			svc, err := rag.NewDocumentService(extractor, objects, "documents", embedder, "m", newFakeVectorStore(), repo)
			require.NoError(t, err)

			_, err = svc.Upload(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.docs)
			// no raw file is left behind by a failed upload
			assert.Empty(t, objects.objects)
		})
	}
}

func TestDocumentServiceReindex(t *testing.T) {
	f := newDocumentFixture(t)
	text := sentences(40)

	doc, err := f.svc.Upload(context.Background(), rag.UploadRequest{
		SessionID: "s1",
		Filename:  "notes.txt",
		Strategy:  "small",
		Content:   []byte(text),
	})
	require.NoError(t, err)
	small := chunker.Chunk(text, "small")
	recursive := chunker.Chunk(text, "recursive")
	require.Greater(t, len(small), len(recursive))

	updated, err := f.svc.Reindex(context.Background(), doc.ID, "recursive")
	require.NoError(t, err)
	assert.Equal(t, "recursive", updated.ChunkStrategy)
	assert.Equal(t, len(recursive), updated.ChunkCount)

	// no chunk of the previous strategy survives
	assert.Equal(t, recursive, f.vectors.contents("s1"))

	saved, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "recursive", saved.ChunkStrategy)
	assert.Equal(t, len(recursive), saved.ChunkCount)
}

func TestDocumentServiceGetNotFound(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, rag.ErrDocumentNotFound)

	_, err = f.svc.Reindex(context.Background(), 42, "small")
	assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
}

func TestDocumentServiceOpen(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, rag.UploadRequest{SessionID: "s1", Filename: "a.txt", Content: []byte("Hello.")})
	require.NoError(t, err)

	got, content, err := f.svc.Open(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, []byte("Hello."), content)

	_, _, err = f.svc.Open(ctx, doc.ID+1)
	assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
}

func TestDocumentServiceList(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	for _, session := range []string{"s1", "s1", "s2"} {
		_, err := f.svc.Upload(ctx, rag.UploadRequest{SessionID: session, Filename: "a.txt", Content: []byte("Hello.")})
		require.NoError(t, err)
	}

	docs, err := f.svc.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = f.svc.List(ctx, "")
	assert.ErrorIs(t, err, rag.ErrInvalidRequest)
}

func TestVectorIDIsDeterministic(t *testing.T) {
	assert.Equal(t, rag.VectorID(7, 3), rag.VectorID(7, 3))
	assert.NotEqual(t, rag.VectorID(7, 3), rag.VectorID(7, 4))
	assert.NotEqual(t, rag.VectorID(7, 3), rag.VectorID(8, 3))
}
