// Package handlers wires the HTTP surface over the session, restriction,
// notification and order components.
package handlers

import (
	"net/http"
	"strconv"

	"canteen-api/notify"
	"canteen-api/orders"
	"canteen-api/ratelimit"
	"canteen-api/restrictions"
	"canteen-api/sessions"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	db         *gorm.DB
	store      *sessions.Store
	limiter    *ratelimit.Limiter
	evaluator  *restrictions.Evaluator
	dispatcher *notify.Dispatcher
	engine     *orders.Engine
)

// Init builds the component graph on a database handle. Tests call it with
// per-test in-memory databases to get isolated instances.
func Init(d *gorm.DB, mailer notify.Mailer) {
	db = d
	store = sessions.New(d)
	limiter = ratelimit.New()
	evaluator = restrictions.NewEvaluator(d)
	dispatcher = notify.NewDispatcher(d, mailer)
	engine = orders.NewEngine(d, evaluator, dispatcher)
}

// Store exposes the session store for middleware registration and sweeps.
func Store() *sessions.Store {
	return store
}

// uintParam parses a numeric path parameter; 0 means absent/invalid and
// downstream lookups turn that into a not-found.
func uintParam(c *gin.Context, name string) uint {
	n, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

// respondViolation maps a typed engine refusal onto an HTTP response.
// Anything that is not a Violation is an internal failure.
func respondViolation(c *gin.Context, err error) {
	v, ok := orders.AsViolation(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
		return
	}
	status := http.StatusUnprocessableEntity
	switch v.Kind {
	case orders.KindNotFound:
		status = http.StatusNotFound
	case orders.KindForbidden:
		status = http.StatusForbidden
	case orders.KindInvalidAmount, orders.KindPastDate:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": v.Reason, "kind": string(v.Kind)})
}
