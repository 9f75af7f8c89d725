// Package notify creates in-app notifications gated by per-category user
// preferences, with an optional best-effort email side effect. Creating a
// notification must never fail the operation that triggered it: every
// failure here is logged and swallowed.
package notify

import (
	"log/slog"
	"strings"

	"canteen-api/models"

	"gorm.io/gorm"
)

// Notification categories; each maps to a user preference toggle.
const (
	CategoryOrders   = "orders"
	CategoryPayments = "payments"
	CategoryFeedback = "feedback"
	CategoryKitchen  = "kitchen"
	CategorySystem   = "system"
)

// categoryRule matches a category by title keywords or a link path prefix.
// First matching rule wins; anything unmatched is system.
type categoryRule struct {
	category string
	keywords []string
	linkPart string
}

// The routing is keyword-heuristic on purpose: preference gating downstream
// depends on these exact boundaries.
var categoryRules = []categoryRule{
	{CategoryOrders, []string{"order", "issued", "meal"}, "/profile/"},
	{CategoryPayments, []string{"balance", "payment", "subscription", "top-up"}, "/pay/"},
	{CategoryFeedback, []string{"feedback", "reply", "moderation"}, "/feedback/"},
	{CategoryKitchen, []string{"request", "purchase", "incident", "supply", "delay", "spoil"}, "/kitchen/"},
}

// CategoryOf classifies a notification by its title and link.
func CategoryOf(title, link string) string {
	titleL := strings.ToLower(title)
	linkL := strings.ToLower(link)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(titleL, kw) {
				return rule.category
			}
		}
		if rule.linkPart != "" && strings.Contains(linkL, rule.linkPart) {
			return rule.category
		}
	}
	return CategorySystem
}

// Dispatcher persists notifications and triggers emails for opted-in users.
type Dispatcher struct {
	db     *gorm.DB
	mailer Mailer // nil when no mail transport is configured
	async  bool   // tests disable this to observe the email synchronously
}

func NewDispatcher(db *gorm.DB, mailer Mailer) *Dispatcher {
	return &Dispatcher{db: db, mailer: mailer, async: true}
}

// Notify delivers one notification to a user. No-ops when the recipient is
// missing, inactive, or has the computed category disabled. Email sending
// is fire-and-forget off the request path.
func (d *Dispatcher) Notify(userID uint, title, body, link string) {
	var recipient models.User
	if err := d.db.First(&recipient, userID).Error; err != nil || !recipient.IsActive {
		return
	}
	category := CategoryOf(title, link)
	if !recipient.NotificationPrefs()[category] {
		return
	}
	n := models.Notification{UserID: userID, Title: title, Body: body, Link: link}
	if err := d.db.Create(&n).Error; err != nil {
		slog.Error("failed to store notification", "user_id", userID, "err", err)
		return
	}
	if d.mailer == nil || !recipient.EmailOptIn() {
		return
	}
	send := func() {
		if err := d.mailer.Send(recipient.Email, title, body+"\n\n"+link); err != nil {
			slog.Error("failed to send notification email", "user_id", userID, "err", err)
		}
	}
	if d.async {
		go send()
	} else {
		send()
	}
}

// NotifyRoles delivers to every active user at or above a role level.
func (d *Dispatcher) NotifyRoles(minLevel int, title, body, link string) {
	var recipients []models.User
	if err := d.db.Where("is_active = ?", true).Find(&recipients).Error; err != nil {
		slog.Error("failed to load notification recipients", "err", err)
		return
	}
	for _, user := range recipients {
		if models.RoleLevel(user.Role) >= minLevel {
			d.Notify(user.ID, title, body, link)
		}
	}
}
