package models

import "time"

// GuardianLink ties a parent account to a student account and carries the
// restrictions the parent imposes. Unique per (guardian, student) pair;
// deactivated, never deleted.
//
// The product fields are comma-separated token lists; normalization and
// matching live in the restrictions package.
type GuardianLink struct {
	ID               uint      `json:"id" gorm:"primaryKey;"`
	GuardianID       uint      `json:"guardian_id" gorm:"not null;index;uniqueIndex:uq_guardian_student"`
	StudentID        uint      `json:"student_id" gorm:"not null;index;uniqueIndex:uq_guardian_student"`
	Guardian         User      `json:"-" gorm:"foreignKey:GuardianID"`
	Student          User      `json:"-" gorm:"foreignKey:StudentID"`
	IsActive         bool      `json:"is_active" gorm:"default:true"`
	DailyLimit       int       `json:"daily_limit" gorm:"not null;default:0"` // 0 = unlimited
	AllowedProducts  string    `json:"allowed_products"`
	RequiredProducts string    `json:"required_products"`
	ForbiddenProducts string   `json:"forbidden_products"`
	BlockedDishIDs   []uint    `json:"blocked_dish_ids" gorm:"serializer:json"`
	BlockedAllergens string    `json:"blocked_allergens"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
