package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TranscriptArchive stores finished call transcripts as text objects.
type TranscriptArchive struct {
	store  StorageService
	bucket string
}

func NewTranscriptArchive(store StorageService, bucket string) *TranscriptArchive {
	return &TranscriptArchive{store: store, bucket: bucket}
}

// TranscriptKey is "<lead>/<yyyy>/<mm>/<call>.txt".
func TranscriptKey(leadID, callID string, endedAt time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s.txt", leadID, endedAt.Year(), int(endedAt.Month()), callID)
}

// Archive uploads transcript and returns its object key.
func (a *TranscriptArchive) Archive(ctx context.Context, leadID, callID string, endedAt time.Time, transcript string) (string, error) {
	key := TranscriptKey(leadID, callID, endedAt.UTC())
	body := strings.NewReader(transcript)
	if err := a.store.PutObject(ctx, a.bucket, key, "text/plain; charset=utf-8", body, int64(body.Len())); err != nil {
		return "", err
	}
	return key, nil
}
