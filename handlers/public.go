package handlers

import (
	"net/http"
	"strconv"

	"canteen-api/middleware"
	"canteen-api/models"
	"canteen-api/restrictions"
	"canteen-api/statemachine"

	"github.com/gin-gonic/gin"
)

// ListMenu returns all active menu items (no auth required)
func ListMenu(c *gin.Context) {
	var items []models.MenuItem
	db.Where("is_active = ?", true).Order("created_at desc").Find(&items)
	c.JSON(http.StatusOK, gin.H{"count": len(items), "items": items})
}

// GetMenuItem returns one active menu item
func GetMenuItem(c *gin.Context) {
	var item models.MenuItem
	if err := db.Where("is_active = ?", true).First(&item, uintParam(c, "id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// GetStateMachine documents the order status transitions
func GetStateMachine(c *gin.Context) {
	transitions := statemachine.GetAllTransitions()
	out := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, gin.H{"from": t.From, "to": t.To, "actor": t.Actor})
	}
	c.JSON(http.StatusOK, gin.H{"transitions": out})
}

// CheckMenuItem evaluates one item against the caller's (or the named
// linked child's) effective policy and allergy tags without placing an
// order.
func CheckMenuItem(c *gin.Context) {
	user := middleware.UserFrom(c)
	var item models.MenuItem
	if err := db.First(&item, uintParam(c, "id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	subject := user
	if childQuery := c.Query("child_id"); childQuery != "" && user.Role == models.RoleParent {
		childID, err := strconv.ParseUint(childQuery, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid child_id"})
			return
		}
		var link models.GuardianLink
		err = db.Where("guardian_id = ? AND student_id = ? AND is_active = ?",
			user.ID, uint(childID), true).First(&link).Error
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Child is not linked to your account"})
			return
		}
		var child models.User
		if err := db.First(&child, uint(childID)).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Child account not found"})
			return
		}
		subject = &child
	}
	policy, err := evaluator.EffectivePolicy(subject.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load policy"})
		return
	}
	verdict := restrictions.CheckItem(&item, policy)
	warnings := restrictions.AllergenWarnings(subject.Allergies(), &item)
	c.JSON(http.StatusOK, gin.H{
		"item_id":           item.ID,
		"allowed":           verdict == "",
		"reason":            verdict,
		"allergen_warnings": warnings,
	})
}
