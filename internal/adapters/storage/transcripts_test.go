package storage

import (
	"context"
	"io"
	"testing"
	"time"
)

type recordingStore struct {
	bucket, key, contentType, body string
	size                           int64
}

func (r *recordingStore) PutObject(_ context.Context, bucket, key, contentType string, reader io.Reader, size int64) error {
	data, _ := io.ReadAll(reader)
	r.bucket, r.key, r.contentType, r.body, r.size = bucket, key, contentType, string(data), size
	return nil
}

func (r *recordingStore) GenerateDownloadURL(context.Context, string, string) (*PresignedURL, error) {
	return nil, nil
}

func (r *recordingStore) EnsureBucketExists(context.Context, string) error { return nil }

func TestArchiveWritesTextObject(t *testing.T) {
	store := &recordingStore{}
	archive := NewTranscriptArchive(store, "call-transcripts")

	ended := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	key, err := archive.Archive(context.Background(), "lead-1", "call-7", ended, "AI: hello\nUser: hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "lead-1/2026/03/call-7.txt" || store.key != key {
		t.Fatalf("unexpected key %q", key)
	}
	if store.bucket != "call-transcripts" || store.body != "AI: hello\nUser: hi" || store.size != int64(len(store.body)) {
		t.Fatalf("unexpected upload %+v", store)
	}
}
