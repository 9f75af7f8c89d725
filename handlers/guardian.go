package handlers

import (
	"net/http"
	"time"

	"canteen-api/config"
	"canteen-api/middleware"
	"canteen-api/models"
	"canteen-api/restrictions"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const inviteTTL = 72 * time.Hour

type inviteClaims struct {
	StudentID uint `json:"student_id"`
	jwt.RegisteredClaims
}

// CreateInvite issues a signed invite token a parent can redeem to link
// themselves to the calling student.
func CreateInvite(c *gin.Context) {
	user := middleware.UserFrom(c)
	if user.Role != models.RoleStudent {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a student can create a guardian invite"})
		return
	}
	claims := inviteClaims{
		StudentID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(inviteTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.InviteSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invite"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"invite_token": token,
		"expires_in_h": int(inviteTTL.Hours()),
	})
}

// RedeemInvite links the calling parent to the student named in the invite
// token, reactivating a previously deactivated link if one exists.
func RedeemInvite(c *gin.Context) {
	user := middleware.UserFrom(c)
	if user.Role != models.RoleParent {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a parent can redeem a guardian invite"})
		return
	}
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := &inviteClaims{}
	token, err := jwt.ParseWithClaims(req.Token, claims, func(t *jwt.Token) (interface{}, error) {
		return config.InviteSecret, nil
	})
	if err != nil || !token.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invite is invalid or expired"})
		return
	}
	var student models.User
	err = db.Where("id = ? AND role = ? AND is_active = ?",
		claims.StudentID, models.RoleStudent, true).First(&student).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Student account is unavailable"})
		return
	}

	var link models.GuardianLink
	err = db.Where("guardian_id = ? AND student_id = ?", user.ID, student.ID).First(&link).Error
	if err == nil {
		link.IsActive = true
		db.Save(&link)
	} else {
		link = models.GuardianLink{GuardianID: user.ID, StudentID: student.ID, IsActive: true}
		if err := db.Create(&link).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create link"})
			return
		}
	}
	dispatcher.Notify(student.ID, "A parent linked to your account",
		user.Name+" "+user.Surname, "/profile/")
	c.JSON(http.StatusOK, gin.H{"message": "Child linked", "link": link})
}

// ListChildren returns the calling parent's linked students
func ListChildren(c *gin.Context) {
	user := middleware.UserFrom(c)
	var links []models.GuardianLink
	db.Preload("Student").
		Where("guardian_id = ? AND is_active = ?", user.ID, true).
		Find(&links)
	out := make([]gin.H, 0, len(links))
	for _, link := range links {
		out = append(out, gin.H{
			"link_id": link.ID,
			"student": gin.H{
				"id":      link.Student.ID,
				"name":    link.Student.Name,
				"surname": link.Student.Surname,
				"balance": link.Student.Balance,
			},
			"daily_limit":        link.DailyLimit,
			"allowed_products":   link.AllowedProducts,
			"required_products":  link.RequiredProducts,
			"forbidden_products": link.ForbiddenProducts,
			"blocked_dish_ids":   link.BlockedDishIDs,
			"blocked_allergens":  link.BlockedAllergens,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "children": out})
}

type UpdateRestrictionsRequest struct {
	DailyLimit        *int    `json:"daily_limit"`
	AllowedProducts   *string `json:"allowed_products"`
	RequiredProducts  *string `json:"required_products"`
	ForbiddenProducts *string `json:"forbidden_products"`
	BlockedDishIDs    *[]uint `json:"blocked_dish_ids"`
	BlockedAllergens  *string `json:"blocked_allergens"`
}

// UpdateRestrictions edits the caller's own link to one child. Token lists
// are normalized before storage so the evaluator sees clean input.
func UpdateRestrictions(c *gin.Context) {
	user := middleware.UserFrom(c)
	studentID := uintParam(c, "id")

	var link models.GuardianLink
	err := db.Where("guardian_id = ? AND student_id = ? AND is_active = ?",
		user.ID, studentID, true).First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child is not linked to your account"})
		return
	}

	var req UpdateRestrictionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DailyLimit != nil {
		if *req.DailyLimit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Daily limit cannot be negative"})
			return
		}
		link.DailyLimit = *req.DailyLimit
	}
	normalize := func(raw string) string {
		return restrictions.StringifyTokens(restrictions.NormalizeTokens(raw))
	}
	if req.AllowedProducts != nil {
		link.AllowedProducts = normalize(*req.AllowedProducts)
	}
	if req.RequiredProducts != nil {
		link.RequiredProducts = normalize(*req.RequiredProducts)
	}
	if req.ForbiddenProducts != nil {
		link.ForbiddenProducts = normalize(*req.ForbiddenProducts)
	}
	if req.BlockedDishIDs != nil {
		link.BlockedDishIDs = *req.BlockedDishIDs
	}
	if req.BlockedAllergens != nil {
		link.BlockedAllergens = normalize(*req.BlockedAllergens)
	}
	if err := db.Save(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update restrictions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restrictions updated", "link": link})
}

// DeactivateLink soft-removes the caller's link to a child
func DeactivateLink(c *gin.Context) {
	user := middleware.UserFrom(c)
	studentID := uintParam(c, "id")
	res := db.Model(&models.GuardianLink{}).
		Where("guardian_id = ? AND student_id = ? AND is_active = ?", user.ID, studentID, true).
		Update("is_active", false)
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child is not linked to your account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Link removed"})
}

// ChildPolicy shows the folded effective policy for a linked child, i.e.
// what all guardians together currently enforce.
func ChildPolicy(c *gin.Context) {
	user := middleware.UserFrom(c)
	studentID := uintParam(c, "id")
	var link models.GuardianLink
	err := db.Where("guardian_id = ? AND student_id = ? AND is_active = ?",
		user.ID, studentID, true).First(&link).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child is not linked to your account"})
		return
	}
	policy, err := evaluator.EffectivePolicy(studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load policy"})
		return
	}
	blocked := make([]uint, 0, len(policy.BlockedDishIDs))
	for id := range policy.BlockedDishIDs {
		blocked = append(blocked, id)
	}
	c.JSON(http.StatusOK, gin.H{"policy": gin.H{
		"daily_limit":       policy.DailyLimit,
		"allowed":           policy.Allowed,
		"required":          policy.Required,
		"forbidden":         policy.Forbidden,
		"blocked_dish_ids":  blocked,
		"blocked_allergens": policy.BlockedAllergens,
	}})
}
