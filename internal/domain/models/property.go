package models

import (
	"time"

	"github.com/google/uuid"
)

type Property struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Bedrooms    *int      `json:"bedrooms"`
	Bathrooms   *int      `json:"bathrooms"`
	AreaSqm     *float64  `json:"area_sqm"`
	UserID      uuid.UUID `json:"user_id"`
	ContentHash *string   `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}
