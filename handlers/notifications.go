package handlers

import (
	"net/http"

	"canteen-api/middleware"
	"canteen-api/models"

	"github.com/gin-gonic/gin"
)

// ListNotifications returns the caller's notifications, newest first
func ListNotifications(c *gin.Context) {
	user := middleware.UserFrom(c)
	var rows []models.Notification
	db.Where("user_id = ?", user.ID).Order("created_at desc").Limit(50).Find(&rows)
	var unread int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).Count(&unread)
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "unread": unread, "notifications": rows})
}

// MarkNotificationRead flags one of the caller's notifications as read
func MarkNotificationRead(c *gin.Context) {
	user := middleware.UserFrom(c)
	res := db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", uintParam(c, "id"), user.ID).
		Update("is_read", true)
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked as read"})
}

// MarkAllNotificationsRead flags all of the caller's notifications as read
func MarkAllNotificationsRead(c *gin.Context) {
	db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", middleware.UserFrom(c).ID, false).
		Update("is_read", true)
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}

type PreferencesRequest struct {
	NotifyOrders       *bool   `json:"notify_orders"`
	NotifyPayments     *bool   `json:"notify_payments"`
	NotifyFeedback     *bool   `json:"notify_feedback"`
	NotifyKitchen      *bool   `json:"notify_kitchen"`
	NotifySystem       *bool   `json:"notify_system"`
	EmailNotifications *bool   `json:"email_notifications"`
	Allergies          *string `json:"allergies"`
}

// UpdatePreferences edits the caller's notification toggles, email opt-in
// and allergy tags. Only fields present in the request change.
func UpdatePreferences(c *gin.Context) {
	user := middleware.UserFrom(c)
	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs := user.Prefs
	if prefs == nil {
		prefs = models.PrefsMap{}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			prefs[key] = *v
		}
	}
	setBool("notify_orders", req.NotifyOrders)
	setBool("notify_payments", req.NotifyPayments)
	setBool("notify_feedback", req.NotifyFeedback)
	setBool("notify_kitchen", req.NotifyKitchen)
	setBool("notify_system", req.NotifySystem)
	setBool("email_notifications", req.EmailNotifications)
	if req.Allergies != nil {
		prefs["allergies"] = *req.Allergies
	}

	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("prefs", prefs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Preferences updated", "prefs": prefs})
}
