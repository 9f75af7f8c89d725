package models

import "time"

// OrderStatus represents all possible states of a meal order
type OrderStatus string

const (
	StatusOrdered   OrderStatus = "ordered"
	StatusIssued    OrderStatus = "issued"
	StatusReceived  OrderStatus = "received"
	StatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	UserID       uint        `json:"user_id" gorm:"not null;index"` // the consumer
	User         User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	PayerID      uint        `json:"payer_id" gorm:"index"` // who paid; differs when a guardian pays
	Payer        User        `json:"payer,omitempty" gorm:"foreignKey:PayerID"`
	MenuItemID   uint        `json:"menu_item_id" gorm:"not null;index"`
	MenuItem     MenuItem    `json:"menu_item,omitempty" gorm:"foreignKey:MenuItemID"`
	Price        int         `json:"price" gorm:"not null"` // snapshot price at time of order
	Status       OrderStatus `json:"status" gorm:"not null;default:'ordered';index"`
	MealDate     time.Time   `json:"meal_date" gorm:"index"`
	PreOrderDate *time.Time  `json:"pre_order_date" gorm:"index"`
	IssuedAt     *time.Time  `json:"issued_at"`
	ReceivedAt   *time.Time  `json:"received_at"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Ledger entry kinds
const (
	LedgerTopUp        = "top_up"
	LedgerOrder        = "order"
	LedgerPreorder     = "preorder"
	LedgerRefund       = "refund"
	LedgerSubscription = "subscription"
)

// LedgerEntry is an immutable signed-amount record against one wallet.
// The sum of entries for a user is the audit trail for User.Balance,
// which is kept as a running total in the same transaction.
type LedgerEntry struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;index"` // the wallet owner (payer)
	TargetUserID uint      `json:"target_user_id" gorm:"index"`   // counterparty (consumer)
	Amount       int       `json:"amount" gorm:"not null"`        // signed: debits negative
	Kind         string    `json:"kind" gorm:"not null"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}
