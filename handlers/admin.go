package handlers

import (
	"net/http"

	"canteen-api/middleware"
	"canteen-api/models"

	"github.com/gin-gonic/gin"
)

// ListUsers returns all accounts (admin only)
func ListUsers(c *gin.Context) {
	var users []models.User
	query := db.Order("created_at desc")
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	query.Find(&users)
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

type ChangeRoleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

// ChangeRole moves a user to a new role, constrained by the permission
// matrix: admins cannot touch admins or mint new ones, nobody below super
// admin changes their own role.
func ChangeRole(c *gin.Context) {
	manager := middleware.UserFrom(c)
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var target models.User
	if err := db.First(&target, uintParam(c, "id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if !models.CanChangeRole(manager, &target, req.Role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot assign this role to this user"})
		return
	}
	if err := db.Model(&target).Update("role", req.Role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change role"})
		return
	}
	// the old sessions carry the old role's TTL; force a fresh sign-in
	store.RevokeAll(target.ID, "")
	dispatcher.Notify(target.ID, "Your role was changed",
		"New role: "+string(req.Role), "/profile/")
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "user_id": target.ID, "role": req.Role})
}

// DeactivateUser disables an account and revokes its sessions (admin only)
func DeactivateUser(c *gin.Context) {
	manager := middleware.UserFrom(c)
	var target models.User
	if err := db.First(&target, uintParam(c, "id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if target.Role == models.RoleSuperAdmin || target.ID == manager.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "This account cannot be deactivated"})
		return
	}
	if err := db.Model(&target).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate user"})
		return
	}
	store.RevokeAll(target.ID, "")
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated", "user_id": target.ID})
}

type AdminTopUpRequest struct {
	Amount      int    `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// AdminTopUp credits any user's wallet (admin only), e.g. cash payments at
// the canteen desk.
func AdminTopUp(c *gin.Context) {
	var req AdminTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	description := req.Description
	if description == "" {
		description = "Balance top-up by administrator"
	}
	newBalance, err := engine.TopUp(uintParam(c, "id"), req.Amount, models.LedgerTopUp, description)
	if err != nil {
		respondViolation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Balance topped up", "balance": newBalance})
}

type MenuItemRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Composition string `json:"composition"`
	Allergens   string `json:"allergens"`
	Category    string `json:"category"`
	Price       int    `json:"price" binding:"required,min=1"`
}

// CreateMenuItem adds a dish to the menu (admin only)
func CreateMenuItem(c *gin.Context) {
	user := middleware.UserFrom(c)
	var req MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item := models.MenuItem{
		Title:       req.Title,
		Description: req.Description,
		Composition: req.Composition,
		Allergens:   req.Allergens,
		Category:    req.Category,
		Price:       req.Price,
		IsActive:    true,
		CreatedBy:   user.ID,
	}
	if item.Category == "" {
		item.Category = "lunch"
	}
	if err := db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu item"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item created", "item": item})
}

// UpdateMenuItem edits a dish. The price change affects future orders
// only; placed orders keep their snapshotted price.
func UpdateMenuItem(c *gin.Context) {
	var item models.MenuItem
	if err := db.First(&item, uintParam(c, "id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	var req MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item.Title = req.Title
	item.Description = req.Description
	item.Composition = req.Composition
	item.Allergens = req.Allergens
	if req.Category != "" {
		item.Category = req.Category
	}
	item.Price = req.Price
	if err := db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

// DeactivateMenuItem removes a dish from ordering without deleting it
func DeactivateMenuItem(c *gin.Context) {
	res := db.Model(&models.MenuItem{}).
		Where("id = ? AND is_active = ?", uintParam(c, "id"), true).
		Update("is_active", false)
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deactivated"})
}
