package models

import (
	"time"

	"github.com/google/uuid"
)

// Media kinds stored in media_uploads.file_type.
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// MediaUpload is one stored file attached to a property. ContentHash is the
// SHA-256 fingerprint of the file bytes; at most one row per fingerprint may
// have IsOriginal set.
type MediaUpload struct {
	ID           uuid.UUID `json:"id"`
	PropertyID   uuid.UUID `json:"property_id"`
	UserID       uuid.UUID `json:"user_id"`
	FilePath     string    `json:"file_path"`
	FileType     string    `json:"file_type"`
	ContentHash  string    `json:"content_hash"`
	FileSize     int64     `json:"file_size"`
	IsOriginal   bool      `json:"is_original"`
	TokensEarned int64     `json:"tokens_earned"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
