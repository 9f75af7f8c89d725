package routes

import (
	"canteen-api/handlers"
	"canteen-api/middleware"
	"canteen-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {
	store := handlers.Store()

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		// Session-establishing endpoints sit outside the CSRF gate
		public.POST("/auth/register", handlers.Register)
		public.POST("/auth/login", handlers.Login)

		// Menu browsing (no auth needed)
		public.GET("/menu", handlers.ListMenu)
		public.GET("/menu/:id", handlers.GetMenuItem)

		// State machine info (great for docs/Postman)
		public.GET("/state-machine", handlers.GetStateMachine)
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(middleware.AuthRequired(store), middleware.CSRF(store))
	{
		auth.GET("/profile", handlers.GetProfile)
		auth.POST("/auth/logout", handlers.Logout)
		auth.POST("/auth/password", handlers.ChangePassword)
		auth.GET("/auth/sessions", handlers.ListSessions)
		auth.POST("/auth/sessions/close", handlers.CloseSession)
		auth.POST("/auth/delete-account", handlers.DeleteAccount)

		auth.GET("/menu/:id/check", handlers.CheckMenuItem)

		auth.GET("/notifications", handlers.ListNotifications)
		auth.POST("/notifications/:id/read", handlers.MarkNotificationRead)
		auth.POST("/notifications/read-all", handlers.MarkAllNotificationsRead)
		auth.POST("/preferences", handlers.UpdatePreferences)

		auth.GET("/ledger", handlers.Ledger)
		auth.POST("/balance/topup", handlers.TopUp)
	}

	// ── Ordering routes (student or parent) ────────────────────────
	ordering := r.Group("/api")
	ordering.Use(middleware.AuthRequired(store), middleware.CSRF(store),
		middleware.RolesRequired(models.RoleStudent, models.RoleParent))
	{
		ordering.POST("/orders", handlers.PlaceOrder)
		ordering.POST("/orders/preorder", handlers.Preorder)
		ordering.GET("/orders", handlers.MyOrders)
		ordering.POST("/orders/:id/cancel", handlers.CancelOrder)
		ordering.POST("/orders/:id/received", handlers.MarkReceived)
	}

	// ── Family routes ──────────────────────────────────────────────
	family := r.Group("/api/family")
	family.Use(middleware.AuthRequired(store), middleware.CSRF(store))
	{
		family.POST("/invite", handlers.CreateInvite)
		family.POST("/redeem", handlers.RedeemInvite)
		family.GET("/children", handlers.ListChildren)
		family.GET("/children/:id/policy", handlers.ChildPolicy)
		family.PUT("/children/:id/restrictions", handlers.UpdateRestrictions)
		family.POST("/children/:id/unlink", handlers.DeactivateLink)
	}

	// ── Kitchen routes (chef and up) ───────────────────────────────
	kitchen := r.Group("/api/kitchen")
	kitchen.Use(middleware.AuthRequired(store), middleware.CSRF(store),
		middleware.MinLevel(models.RoleLevel(models.RoleChef)))
	{
		kitchen.GET("/queue", handlers.KitchenQueue)
		kitchen.POST("/orders/:id/issue", handlers.IssueOrder)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(store), middleware.CSRF(store),
		middleware.MinLevel(models.RoleLevel(models.RoleAdmin)))
	{
		admin.GET("/users", handlers.ListUsers)
		admin.PUT("/users/:id/role", handlers.ChangeRole)
		admin.POST("/users/:id/deactivate", handlers.DeactivateUser)
		admin.POST("/users/:id/topup", handlers.AdminTopUp)

		admin.POST("/menu", handlers.CreateMenuItem)
		admin.PUT("/menu/:id", handlers.UpdateMenuItem)
		admin.DELETE("/menu/:id", handlers.DeactivateMenuItem)
	}
}
