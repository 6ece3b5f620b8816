package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionTypeUploadReward tags reward credits for original media uploads.
const TransactionTypeUploadReward = "upload_reward"

// TokenTransaction is an append-only ledger entry. The sum of amounts per
// user equals that user's current token balance.
type TokenTransaction struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	MediaID         uuid.UUID `json:"media_id"`
	Amount          int64     `json:"amount"`
	TransactionType string    `json:"transaction_type"`
	CreatedAt       time.Time `json:"created_at"`
}
