package handlers

import (
	"net/http"
	"time"

	"canteen-api/config"
	"canteen-api/middleware"
	"canteen-api/models"

	"github.com/gin-gonic/gin"
)

type PlaceOrderRequest struct {
	ItemID   uint   `json:"item_id" binding:"required"`
	MealDate string `json:"meal_date"` // YYYY-MM-DD, defaults to today
	ChildID  uint   `json:"child_id"`  // required when a parent orders
}

// resolveConsumer picks who eats and who pays. A student orders for
// themselves; a parent orders for a linked child and pays.
func resolveConsumer(c *gin.Context, user *models.User, childID uint) (consumerID uint, ok bool) {
	if user.Role != models.RoleParent {
		return user.ID, true
	}
	if childID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Select a child for the order"})
		return 0, false
	}
	var child models.User
	err := db.Where("id = ? AND role = ? AND is_active = ?", childID, models.RoleStudent, true).
		First(&child).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Child account not found"})
		return 0, false
	}
	var link models.GuardianLink
	err = db.Where("guardian_id = ? AND student_id = ? AND is_active = ?", user.ID, child.ID, true).
		First(&link).Error
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Child is not linked to your account"})
		return 0, false
	}
	return child.ID, true
}

// PlaceOrder places an order for a meal date (student or parent only)
func PlaceOrder(c *gin.Context) {
	user := middleware.UserFrom(c)
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mealDate := time.Now()
	if req.MealDate != "" {
		parsed, err := time.Parse("2006-01-02", req.MealDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal date, expected YYYY-MM-DD"})
			return
		}
		mealDate = parsed
	}

	consumerID, ok := resolveConsumer(c, user, req.ChildID)
	if !ok {
		return
	}

	order, err := engine.Place(consumerID, user.ID, req.ItemID, mealDate)
	if err != nil {
		respondViolation(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": order})
}

type PreorderRequest struct {
	ItemID  uint `json:"item_id" binding:"required"`
	ChildID uint `json:"child_id"`
}

// Preorder places an order fixed to tomorrow with duplicate protection
func Preorder(c *gin.Context) {
	user := middleware.UserFrom(c)
	var req PreorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	consumerID, ok := resolveConsumer(c, user, req.ChildID)
	if !ok {
		return
	}
	order, err := engine.PlacePreorder(consumerID, user.ID, req.ItemID)
	if err != nil {
		respondViolation(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Pre-order placed successfully", "order": order})
}

// CancelOrder cancels an ordered order and refunds the payer
func CancelOrder(c *gin.Context) {
	user := middleware.UserFrom(c)
	if err := engine.Cancel(uintParam(c, "id"), user.ID); err != nil {
		respondViolation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled, funds returned to balance"})
}

// MarkReceived confirms receipt of a meal (consumer only)
func MarkReceived(c *gin.Context) {
	user := middleware.UserFrom(c)
	if err := engine.MarkReceived(uintParam(c, "id"), user.ID); err != nil {
		respondViolation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Receipt confirmed"})
}

// MyOrders lists the caller's orders newest first; for parents it also
// covers orders they paid for.
func MyOrders(c *gin.Context) {
	user := middleware.UserFrom(c)
	var rows []models.Order
	db.Preload("MenuItem").
		Where("user_id = ? OR payer_id = ?", user.ID, user.ID).
		Order("created_at desc").Limit(240).
		Find(&rows)
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "orders": rows})
}

// Ledger returns the caller's wallet history newest first
func Ledger(c *gin.Context) {
	user := middleware.UserFrom(c)
	var rows []models.LedgerEntry
	db.Where("user_id = ?", user.ID).Order("created_at desc").Limit(100).Find(&rows)
	c.JSON(http.StatusOK, gin.H{
		"balance": user.Balance,
		"count":   len(rows),
		"entries": rows,
	})
}

type TopUpRequest struct {
	Amount  int    `json:"amount" binding:"required"`
	Comment string `json:"comment"`
}

// TopUp credits the caller's wallet up to the configured maximum
func TopUp(c *gin.Context) {
	user := middleware.UserFrom(c)
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount > config.TopUpMaxAmount {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Amount exceeds the top-up maximum",
			"max":   config.TopUpMaxAmount,
		})
		return
	}
	description := "Balance top-up"
	if req.Comment != "" {
		description = "Balance top-up: " + req.Comment
	}
	newBalance, err := engine.TopUp(user.ID, req.Amount, models.LedgerTopUp, description)
	if err != nil {
		respondViolation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Balance topped up", "balance": newBalance})
}
