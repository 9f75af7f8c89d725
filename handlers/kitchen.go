package handlers

import (
	"net/http"
	"time"

	"canteen-api/models"
	"canteen-api/restrictions"

	"github.com/gin-gonic/gin"
)

// KitchenQueue lists orders awaiting issue: today's orders and tomorrow's
// pre-orders separately.
func KitchenQueue(c *gin.Context) {
	today := restrictions.DateOnly(time.Now())

	var current []models.Order
	db.Preload("MenuItem").Preload("User").
		Where("status = ? AND pre_order_date IS NULL AND meal_date = ?", models.StatusOrdered, today).
		Order("created_at asc").
		Find(&current)

	var preorders []models.Order
	db.Preload("MenuItem").Preload("User").
		Where("status = ? AND pre_order_date IS NOT NULL", models.StatusOrdered).
		Order("pre_order_date asc, created_at asc").
		Find(&preorders)

	c.JSON(http.StatusOK, gin.H{
		"queue":     current,
		"preorders": preorders,
	})
}

// IssueOrder marks an ordered meal as handed out (kitchen roles only)
func IssueOrder(c *gin.Context) {
	if err := engine.Issue(uintParam(c, "id")); err != nil {
		respondViolation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order issued"})
}
