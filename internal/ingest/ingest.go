// Package ingest runs the per-file media pipeline for property creation:
// fingerprint, dedup check, durable store, metadata insert and, for the
// first upload of a fingerprint, the token reward.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sultanproperti/property-backend/internal/domain/models"
	"github.com/sultanproperti/property-backend/internal/lib/fingerprint"
	"github.com/sultanproperti/property-backend/internal/storage"
	"github.com/sultanproperti/property-backend/internal/storage/disk"
)

// Storage is the subset of relational storage the pipeline needs.
type Storage interface {
	SaveProperty(ctx context.Context, property *models.Property) error
	HasFingerprint(ctx context.Context, hash string) (bool, error)
	SaveMedia(ctx context.Context, media *models.MediaUpload) error
	AwardTokens(ctx context.Context, userID, mediaID uuid.UUID, amount int64) error
}

// FileStore persists raw upload bytes and returns the location used.
type FileStore interface {
	Save(filename string, data []byte) (string, error)
}

// File is one named attachment of an upload request.
type File struct {
	Name string
	Data []byte
}

// PropertyRequest carries the listing metadata of an upload request.
type PropertyRequest struct {
	UserID      uuid.UUID
	Title       string
	Location    string
	Price       float64
	Description string
	Bedrooms    *int
	Bathrooms   *int
	AreaSqm     *float64
}

// Result aggregates what one request actually persisted.
type Result struct {
	PropertyID   uuid.UUID
	MediaIDs     []uuid.UUID
	TokensEarned int64
}

type Service struct {
	storage Storage
	files   FileStore
	logger  *slog.Logger
	reward  int64
}

func New(storage Storage, files FileStore, logger *slog.Logger, reward int64) *Service {
	return &Service{
		storage: storage,
		files:   files,
		logger:  logger,
		reward:  reward,
	}
}

// CreateProperty inserts the property row, then runs the pipeline for each
// attachment in order. A file that fails is logged and skipped; files
// already persisted keep their committed state.
func (s *Service) CreateProperty(ctx context.Context, req PropertyRequest, files []File) (*Result, error) {
	property := &models.Property{
		ID:          uuid.New(),
		Title:       req.Title,
		Location:    req.Location,
		Price:       req.Price,
		Description: req.Description,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		AreaSqm:     req.AreaSqm,
		UserID:      req.UserID,
	}

	if err := s.storage.SaveProperty(ctx, property); err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	result := &Result{
		PropertyID: property.ID,
		MediaIDs:   []uuid.UUID{},
	}

	for _, file := range files {
		media, err := s.ingestFile(ctx, req.UserID, property.ID, file)
		if err != nil {
			s.logger.Error("Failed to ingest file",
				slog.String("file", file.Name),
				slog.String("property_id", property.ID.String()),
				"error", err,
			)
			continue
		}

		result.MediaIDs = append(result.MediaIDs, media.ID)
		result.TokensEarned += media.TokensEarned
	}

	s.logger.Info("Property uploaded",
		slog.String("property_id", property.ID.String()),
		slog.Int("files", len(result.MediaIDs)),
		slog.Int64("tokens_earned", result.TokensEarned),
	)

	return result, nil
}

// ingestFile runs one attachment through hash, dedup check, durable write,
// metadata insert and conditional reward. The metadata insert is the true
// arbiter of originality: losing the fingerprint uniqueness race downgrades
// the row to a non-original copy instead of failing the file.
func (s *Service) ingestFile(ctx context.Context, userID, propertyID uuid.UUID, file File) (*models.MediaUpload, error) {
	hash := fingerprint.Sum(file.Data)

	seen, err := s.storage.HasFingerprint(ctx, hash)
	if err != nil {
		return nil, err
	}

	// Duplicates are stored too; only the flag and the reward differ.
	path, err := s.files.Save(file.Name, file.Data)
	if err != nil {
		return nil, err
	}

	media := &models.MediaUpload{
		ID:          uuid.New(),
		PropertyID:  propertyID,
		UserID:      userID,
		FilePath:    path,
		FileType:    disk.MediaKind(file.Name),
		ContentHash: hash,
		FileSize:    int64(len(file.Data)),
		IsOriginal:  !seen,
	}

	if err := s.storage.SaveMedia(ctx, media); err != nil {
		if !media.IsOriginal || !errors.Is(err, storage.ErrDuplicateFingerprint) {
			return nil, err
		}

		// A concurrent upload registered the same fingerprint between the
		// advisory check and our insert. Keep the file as a copy.
		s.logger.Info("Fingerprint race lost, storing as duplicate",
			slog.String("file", file.Name),
			slog.String("content_hash", hash),
		)
		media.ID = uuid.New()
		media.IsOriginal = false
		if err := s.storage.SaveMedia(ctx, media); err != nil {
			return nil, err
		}
	}

	if media.IsOriginal {
		if err := s.storage.AwardTokens(ctx, userID, media.ID, s.reward); err != nil {
			return nil, err
		}
		media.TokensEarned = s.reward
	}

	return media, nil
}
