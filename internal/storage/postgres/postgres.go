package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sultanproperti/property-backend/internal/domain/models"
	"github.com/sultanproperti/property-backend/internal/storage"
)

type Storage struct {
	db *sql.DB
}

func New(dbUrl string) (*Storage, error) {
	db, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %s", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect database error %s", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (s *Storage) SaveUser(ctx context.Context, username string, walletAddress *string) (*models.User, error) {
	const op = "storage.postgres.SaveUser"

	var user models.User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, username, wallet_address)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, wallet_address, token_balance, created_at`,
		uuid.New(), username, walletAddress,
	).Scan(&user.ID, &user.Username, &user.WalletAddress, &user.TokenBalance, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUsernameTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.GetUserByID"

	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, wallet_address, token_balance, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Username, &user.WalletAddress, &user.TokenBalance, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (s *Storage) SaveProperty(ctx context.Context, property *models.Property) error {
	const op = "storage.postgres.SaveProperty"

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO properties
		 (id, title, location, price, description, bedrooms, bathrooms, area_sqm, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		property.ID, property.Title, property.Location, property.Price,
		property.Description, property.Bedrooms, property.Bathrooms,
		property.AreaSqm, property.UserID,
	).Scan(&property.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ListProperties(ctx context.Context) ([]models.Property, error) {
	const op = "storage.postgres.ListProperties"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, location, price, description, bedrooms, bathrooms,
		        area_sqm, user_id, content_hash, created_at
		 FROM properties ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanProperties(rows, op)
}

func (s *Storage) SearchProperties(ctx context.Context, query string) ([]models.Property, error) {
	const op = "storage.postgres.SearchProperties"

	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, location, price, description, bedrooms, bathrooms,
		        area_sqm, user_id, content_hash, created_at
		 FROM properties
		 WHERE LOWER(title) LIKE $1
		    OR LOWER(location) LIKE $1
		    OR LOWER(description) LIKE $1
		 ORDER BY created_at DESC`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanProperties(rows, op)
}

func scanProperties(rows *sql.Rows, op string) ([]models.Property, error) {
	properties := []models.Property{}
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Location, &p.Price, &p.Description,
			&p.Bedrooms, &p.Bathrooms, &p.AreaSqm, &p.UserID,
			&p.ContentHash, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return properties, nil
}

// HasFingerprint reports whether any stored media already carries hash.
// Advisory only: the partial unique index on media_uploads is the
// authoritative dedup gate.
func (s *Storage) HasFingerprint(ctx context.Context, hash string) (bool, error) {
	const op = "storage.postgres.HasFingerprint"

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM media_uploads WHERE content_hash = $1)`,
		hash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// SaveMedia inserts one media_uploads row. An insert with IsOriginal set
// that collides on the content fingerprint returns ErrDuplicateFingerprint.
func (s *Storage) SaveMedia(ctx context.Context, media *models.MediaUpload) error {
	const op = "storage.postgres.SaveMedia"

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO media_uploads
		 (id, property_id, user_id, file_path, file_type, content_hash,
		  file_size, is_original, tokens_earned)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING uploaded_at`,
		media.ID, media.PropertyID, media.UserID, media.FilePath,
		media.FileType, media.ContentHash, media.FileSize,
		media.IsOriginal, media.TokensEarned,
	).Scan(&media.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrDuplicateFingerprint)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AwardTokens credits amount to the user's balance, appends the matching
// ledger entry and records the amount on the media row, all in one
// transaction. Either every effect commits or none does.
func (s *Storage) AwardTokens(ctx context.Context, userID, mediaID uuid.UUID, amount int64) error {
	const op = "storage.postgres.AwardTokens"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET token_balance = token_balance + $1 WHERE id = $2`,
		amount, userID,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO token_transactions (id, user_id, media_id, amount, transaction_type)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), userID, mediaID, amount, models.TransactionTypeUploadReward,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE media_uploads SET tokens_earned = $1 WHERE id = $2`,
		amount, mediaID,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
