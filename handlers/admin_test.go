package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"canteen-api/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// registerAs self-registers a student, promotes the row directly and signs
// in again so the session carries the elevated role.
func registerAs(t *testing.T, r *gin.Engine, db *gorm.DB, email string, role models.UserRole) *client {
	t.Helper()
	registerStudent(t, r, email)
	require.NoError(t, db.Model(&models.User{}).
		Where("email = ?", email).Update("role", role).Error)

	cl := &client{r: r}
	w := cl.do(t, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"email":%q,"password":"secret123"}`, email), false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cl.adopt(t, w)
	return cl
}

func TestAdminMenuManagement(t *testing.T) {
	r, db := setupServer(t)
	admin := registerAs(t, r, db, "admin@school.local", models.RoleAdmin)

	w := admin.do(t, http.MethodPost, "/api/admin/menu",
		`{"title":"Borscht","composition":"beet, cabbage, beef","allergens":"","price":120}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item models.MenuItem
	require.NoError(t, db.Where("title = ?", "Borscht").First(&item).Error)
	require.Equal(t, "lunch", item.Category, "category defaults when omitted")

	w = admin.do(t, http.MethodPut, fmt.Sprintf("/api/admin/menu/%d", item.ID),
		`{"title":"Borscht","composition":"beet, cabbage","price":150}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	// the public menu shows it until deactivation
	anon := &client{r: r}
	w = anon.do(t, http.MethodGet, "/api/menu", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Borscht")

	w = admin.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/menu/%d", item.ID), "", true)
	require.Equal(t, http.StatusOK, w.Code)
	w = anon.do(t, http.MethodGet, fmt.Sprintf("/api/menu/%d", item.ID), "", false)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesClosedToStudents(t *testing.T) {
	r, _ := setupServer(t)
	student := registerStudent(t, r, "kid@school.local")

	w := student.do(t, http.MethodGet, "/api/admin/users", "", false)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = student.do(t, http.MethodGet, "/api/kitchen/queue", "", false)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChangeRoleMatrix(t *testing.T) {
	r, db := setupServer(t)
	admin := registerAs(t, r, db, "admin@school.local", models.RoleAdmin)
	registerAs(t, r, db, "other-admin@school.local", models.RoleAdmin)
	registerStudent(t, r, "kid@school.local")

	kid := userByEmail(t, db, "kid@school.local")
	other := userByEmail(t, db, "other-admin@school.local")

	// admin may promote a student to chef
	w := admin.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", kid.ID),
		`{"role":"chef"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, models.RoleChef, userByEmail(t, db, "kid@school.local").Role)

	// but cannot touch another admin, nor mint one
	w = admin.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", other.ID),
		`{"role":"chef"}`, true)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = admin.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", kid.ID),
		`{"role":"admin"}`, true)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoleChangeRevokesSessions(t *testing.T) {
	r, db := setupServer(t)
	admin := registerAs(t, r, db, "admin@school.local", models.RoleAdmin)
	student := registerStudent(t, r, "kid@school.local")
	kid := userByEmail(t, db, "kid@school.local")

	w := admin.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", kid.ID),
		`{"role":"chef"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	// the old session carried the old role's TTL and is gone
	w = student.do(t, http.MethodGet, "/api/profile", "", false)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeactivateUserGuards(t *testing.T) {
	r, db := setupServer(t)
	admin := registerAs(t, r, db, "admin@school.local", models.RoleAdmin)
	student := registerStudent(t, r, "kid@school.local")
	kid := userByEmail(t, db, "kid@school.local")
	self := userByEmail(t, db, "admin@school.local")

	// not yourself
	w := admin.do(t, http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/deactivate", self.ID), "", true)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = admin.do(t, http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/deactivate", kid.ID), "", true)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, userByEmail(t, db, "kid@school.local").IsActive)

	w = student.do(t, http.MethodGet, "/api/profile", "", false)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminTopUpAndKitchenIssueFlow(t *testing.T) {
	r, db := setupServer(t)
	admin := registerAs(t, r, db, "admin@school.local", models.RoleAdmin)
	chef := registerAs(t, r, db, "chef@school.local", models.RoleChef)
	student := registerStudent(t, r, "kid@school.local")
	kid := userByEmail(t, db, "kid@school.local")

	w := admin.do(t, http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/topup", kid.ID),
		`{"amount":500,"description":"cash at the desk"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 500, userByEmail(t, db, "kid@school.local").Balance)

	item := models.MenuItem{Title: "Soup", Price: 100, IsActive: true}
	require.NoError(t, db.Create(&item).Error)
	w = student.do(t, http.MethodPost, "/api/orders",
		fmt.Sprintf(`{"item_id":%d}`, item.ID), true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = chef.do(t, http.MethodGet, "/api/kitchen/queue", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Soup")

	var order models.Order
	require.NoError(t, db.Where("user_id = ?", kid.ID).First(&order).Error)
	w = chef.do(t, http.MethodPost,
		fmt.Sprintf("/api/kitchen/orders/%d/issue", order.ID), "", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = student.do(t, http.MethodPost,
		fmt.Sprintf("/api/orders/%d/received", order.ID), "", true)
	require.Equal(t, http.StatusOK, w.Code)

	// issued and received are visible to the student afterwards
	w = student.do(t, http.MethodGet, "/api/orders", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"received"`)
}
