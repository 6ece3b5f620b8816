package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sultanproperti/property-backend/internal/domain/models"
	"github.com/sultanproperti/property-backend/internal/lib/fingerprint"
	"github.com/sultanproperti/property-backend/internal/storage"
	"github.com/sultanproperti/property-backend/internal/storage/disk"
)

const rewardTokens = 100

// fakeStorage mimics the relational layer, including the partial uniqueness
// constraint on original fingerprints. The visible set backs the advisory
// check and can lag behind originals to reproduce the insert race.
type fakeStorage struct {
	properties []models.Property
	media      []*models.MediaUpload
	balances   map[uuid.UUID]int64
	ledgerSums map[uuid.UUID]int64
	awardCount map[uuid.UUID]int
	originals  map[string]bool
	visible    map[string]bool

	propertyErr error
	awardErr    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		balances:   make(map[uuid.UUID]int64),
		ledgerSums: make(map[uuid.UUID]int64),
		awardCount: make(map[uuid.UUID]int),
		originals:  make(map[string]bool),
		visible:    make(map[string]bool),
	}
}

func (f *fakeStorage) SaveProperty(ctx context.Context, property *models.Property) error {
	if f.propertyErr != nil {
		return f.propertyErr
	}
	f.properties = append(f.properties, *property)
	return nil
}

func (f *fakeStorage) HasFingerprint(ctx context.Context, hash string) (bool, error) {
	return f.visible[hash], nil
}

func (f *fakeStorage) SaveMedia(ctx context.Context, media *models.MediaUpload) error {
	if media.IsOriginal && f.originals[media.ContentHash] {
		return fmt.Errorf("storage.postgres.SaveMedia: %w", storage.ErrDuplicateFingerprint)
	}
	copied := *media
	f.media = append(f.media, &copied)
	if media.IsOriginal {
		f.originals[media.ContentHash] = true
	}
	f.visible[media.ContentHash] = true
	return nil
}

func (f *fakeStorage) AwardTokens(ctx context.Context, userID, mediaID uuid.UUID, amount int64) error {
	if f.awardErr != nil {
		return f.awardErr
	}
	f.balances[userID] += amount
	f.ledgerSums[userID] += amount
	f.awardCount[mediaID]++
	for _, m := range f.media {
		if m.ID == mediaID {
			m.TokensEarned = amount
		}
	}
	return nil
}

func (f *fakeStorage) originalCount(hash string) int {
	count := 0
	for _, m := range f.media {
		if m.ContentHash == hash && m.IsOriginal {
			count++
		}
	}
	return count
}

func newTestService(t *testing.T, fs *fakeStorage) *Service {
	t.Helper()
	store, err := disk.New(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(fs, store, logger, rewardTokens)
}

func TestCreatePropertyOriginalUpload(t *testing.T) {
	fs := newFakeStorage()
	service := newTestService(t, fs)
	alice := uuid.New()

	result, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID:   alice,
		Title:    "Villa in Jakarta",
		Location: "Jakarta",
		Price:    250000,
	}, []File{{Name: "villa.jpg", Data: bytes.Repeat([]byte{0xab}, 1200)}})
	require.NoError(t, err)

	assert.Equal(t, int64(rewardTokens), result.TokensEarned)
	require.Len(t, result.MediaIDs, 1)
	assert.Equal(t, int64(rewardTokens), fs.balances[alice])

	require.Len(t, fs.media, 1)
	media := fs.media[0]
	assert.True(t, media.IsOriginal)
	assert.Equal(t, int64(rewardTokens), media.TokensEarned)
	assert.Equal(t, int64(1200), media.FileSize)
	assert.Equal(t, models.MediaKindImage, media.FileType)
}

func TestCreatePropertyDuplicateUpload(t *testing.T) {
	fs := newFakeStorage()
	service := newTestService(t, fs)
	alice, bob := uuid.New(), uuid.New()
	data := bytes.Repeat([]byte{0xab}, 1200)

	_, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: alice, Title: "First listing", Location: "Jakarta", Price: 1,
	}, []File{{Name: "villa.jpg", Data: data}})
	require.NoError(t, err)

	// Same bytes, different filename, different user.
	result, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: bob, Title: "Second listing", Location: "Bandung", Price: 2,
	}, []File{{Name: "copy.png", Data: data}})
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.TokensEarned)
	require.Len(t, result.MediaIDs, 1)
	assert.Equal(t, int64(0), fs.balances[bob])
	assert.Equal(t, int64(rewardTokens), fs.balances[alice])

	require.Len(t, fs.media, 2)
	assert.Equal(t, fs.media[0].ContentHash, fs.media[1].ContentHash)
	assert.True(t, fs.media[0].IsOriginal)
	assert.False(t, fs.media[1].IsOriginal)
	assert.Equal(t, int64(0), fs.media[1].TokensEarned)
	assert.Equal(t, 1, fs.originalCount(fs.media[0].ContentHash))
}

func TestCreatePropertyNoAttachments(t *testing.T) {
	fs := newFakeStorage()
	service := newTestService(t, fs)

	result, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: uuid.New(), Title: "Bare land", Location: "Bali", Price: 9000,
	}, nil)
	require.NoError(t, err)

	assert.Empty(t, result.MediaIDs)
	assert.NotNil(t, result.MediaIDs)
	assert.Equal(t, int64(0), result.TokensEarned)
	assert.Len(t, fs.properties, 1)
	assert.Empty(t, fs.media)
}

func TestCreatePropertyFingerprintRace(t *testing.T) {
	fs := newFakeStorage()
	service := newTestService(t, fs)
	user := uuid.New()
	data := []byte("contested content")

	// A concurrent request claimed the original slot after our advisory
	// check would run: the fingerprint is not yet visible to the check but
	// already owns the uniqueness constraint.
	fs.originals[fingerprint.Sum(data)] = true

	result, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: user, Title: "Raced listing", Location: "Jakarta", Price: 5,
	}, []File{{Name: "raced.jpg", Data: data}})
	require.NoError(t, err)

	require.Len(t, result.MediaIDs, 1)
	assert.Equal(t, int64(0), result.TokensEarned)
	assert.Equal(t, int64(0), fs.balances[user])

	require.Len(t, fs.media, 1)
	assert.False(t, fs.media[0].IsOriginal)
	assert.Equal(t, int64(0), fs.media[0].TokensEarned)
	assert.Equal(t, 0, fs.awardCount[fs.media[0].ID])
}

type failingFileStore struct {
	failName string
	backing  FileStore
}

func (f *failingFileStore) Save(filename string, data []byte) (string, error) {
	if filename == f.failName {
		return "", errors.New("disk full")
	}
	return f.backing.Save(filename, data)
}

func TestCreatePropertyFileFailureIsolated(t *testing.T) {
	fs := newFakeStorage()
	backing, err := disk.New(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := New(fs, &failingFileStore{failName: "broken.jpg", backing: backing}, logger, rewardTokens)

	user := uuid.New()
	result, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: user, Title: "Partial batch", Location: "Jakarta", Price: 1,
	}, []File{
		{Name: "ok1.jpg", Data: []byte("first file")},
		{Name: "broken.jpg", Data: []byte("doomed file")},
		{Name: "ok2.mp4", Data: []byte("third file")},
	})
	require.NoError(t, err)

	// The failed file is dropped from the response; siblings keep their state.
	assert.Len(t, result.MediaIDs, 2)
	assert.Equal(t, int64(2*rewardTokens), result.TokensEarned)
	assert.Len(t, fs.media, 2)
	assert.Len(t, fs.properties, 1)
	assert.Equal(t, models.MediaKindVideo, fs.media[1].FileType)
}

func TestCreatePropertyAwardFailureSkipsFile(t *testing.T) {
	fs := newFakeStorage()
	fs.awardErr = errors.New("connection lost")
	service := newTestService(t, fs)
	user := uuid.New()

	result, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: user, Title: "Unlucky", Location: "Jakarta", Price: 1,
	}, []File{{Name: "a.jpg", Data: []byte("payload")}})
	require.NoError(t, err)

	assert.Empty(t, result.MediaIDs)
	assert.Equal(t, int64(0), result.TokensEarned)
	assert.Equal(t, int64(0), fs.balances[user])
}

func TestCreatePropertyStorageFailure(t *testing.T) {
	fs := newFakeStorage()
	fs.propertyErr = errors.New("connection lost")
	service := newTestService(t, fs)

	_, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: uuid.New(), Title: "Doomed", Location: "Jakarta", Price: 1,
	}, nil)
	require.Error(t, err)
	assert.Empty(t, fs.properties)
}

func TestBalanceMatchesLedger(t *testing.T) {
	fs := newFakeStorage()
	service := newTestService(t, fs)
	user := uuid.New()

	_, err := service.CreateProperty(context.Background(), PropertyRequest{
		UserID: user, Title: "Two files", Location: "Jakarta", Price: 1,
	}, []File{
		{Name: "a.jpg", Data: []byte("one")},
		{Name: "b.jpg", Data: []byte("two")},
		{Name: "c.jpg", Data: []byte("one")}, // duplicate of a.jpg
	})
	require.NoError(t, err)

	assert.Equal(t, fs.ledgerSums[user], fs.balances[user])
	assert.Equal(t, int64(2*rewardTokens), fs.balances[user])
	for _, m := range fs.media {
		assert.LessOrEqual(t, fs.awardCount[m.ID], 1)
	}
}
