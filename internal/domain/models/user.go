package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	WalletAddress *string   `json:"wallet_address"`
	TokenBalance  int64     `json:"token_balance"`
	CreatedAt     time.Time `json:"created_at"`
}
