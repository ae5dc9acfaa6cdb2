package model

import "time"

// UploadVoiceResponse represents the response after uploading a voice sample
type UploadVoiceResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	FileURL   string    `json:"fileUrl"`
	VoiceName string    `json:"voiceName"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
