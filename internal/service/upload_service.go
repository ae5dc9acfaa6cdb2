package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipdeck/api/internal/client"
	"github.com/clipdeck/api/internal/model"
)

const mockCDN = "https://cdn.clipdeck.local"

// UploadService stores voice samples and presigns media for playback
type UploadService struct {
	storage client.StorageClient
}

// NewUploadService creates an upload service. A nil storage client returns
// mock URLs.
func NewUploadService(storage client.StorageClient) *UploadService {
	return &UploadService{storage: storage}
}

// UploadVoice stores a voice sample under voices/<project>/<id><ext>
func (s *UploadService) UploadVoice(ctx context.Context, projectID, voiceName, filename string, file io.Reader, size int64, contentType string) (*model.UploadVoiceResponse, error) {
	id := uuid.NewString()
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".wav"
	}
	if contentType == "" {
		contentType = "audio/wav"
	}
	key := fmt.Sprintf("voices/%s/%s%s", projectID, id, ext)

	resp := &model.UploadVoiceResponse{
		ID:        id,
		Key:       key,
		VoiceName: voiceName,
		Size:      size,
		CreatedAt: time.Now(),
	}

	if s.storage == nil {
		resp.FileURL = mockCDN + "/" + key
		return resp, nil
	}

	fileURL, err := s.storage.Upload(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload voice sample: %w", err)
	}
	resp.FileURL = fileURL
	return resp, nil
}

// DeleteVoice removes a stored voice sample by key
func (s *UploadService) DeleteVoice(ctx context.Context, key string) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Delete(ctx, key)
}

// SignedURL presigns a stored object for temporary access
func (s *UploadService) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.storage == nil {
		return mockCDN + "/" + key, nil
	}
	return s.storage.GetSignedURL(ctx, key, expiry)
}
