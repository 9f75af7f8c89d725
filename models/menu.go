package models

import "time"

// MenuItem is a dish on the canteen menu. Title, description and
// composition feed the restriction text matching; Allergens holds explicit
// comma-separated tags and takes precedence over free-text scanning.
type MenuItem struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	Composition string    `json:"composition"`
	Allergens   string    `json:"allergens"`
	Category    string    `json:"category" gorm:"default:'lunch'"`
	Price       int       `json:"price" gorm:"not null;default:0"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
