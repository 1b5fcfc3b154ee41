package models

import (
	"time"

	"github.com/google/uuid"
)

type Book struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"not null;size:255;index" json:"title"`
	Author      string    `gorm:"size:255;index" json:"author"`
	Description string    `gorm:"type:text" json:"description"`
	CoverImage  string    `gorm:"size:500" json:"cover_image"`
	Genre       string    `gorm:"size:100;index" json:"genre"`
	IsPremium   bool      `gorm:"not null;default:false" json:"is_premium"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserBook is a user's library entry with reading progress in [0, 1].
type UserBook struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_books_user_book" json:"user_id"`
	BookID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_books_user_book" json:"book_id"`
	Progress  float64    `gorm:"not null;default:0" json:"progress"`
	LastRead  *time.Time `json:"last_read,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Book      Book       `gorm:"foreignKey:BookID" json:"-"`
}
