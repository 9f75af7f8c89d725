package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"canteen-api/config"
	"canteen-api/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, prefs models.PrefsMap) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("user-%d@school.local", time.Now().UnixNano()),
		PasswordHash: "x",
		Name:         "Test",
		Role:         models.RoleStudent,
		Prefs:        prefs,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type fakeMailer struct {
	sent []string // "to|subject"
}

func (f *fakeMailer) Send(to, subject, body string) error {
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func TestCategoryOf(t *testing.T) {
	cases := []struct {
		title, link, want string
	}{
		{"Order placed", "", CategoryOrders},
		{"Meal issued", "", CategoryOrders},
		{"", "/profile/orders", CategoryOrders},
		{"Balance topped up", "", CategoryPayments},
		{"Subscription renewed", "", CategoryPayments},
		{"", "/pay/history", CategoryPayments},
		{"New reply to your feedback", "", CategoryFeedback},
		{"Purchase request approved", "", CategoryKitchen},
		{"Supply delay", "", CategoryKitchen},
		{"Password changed", "", CategorySystem},
		{"", "", CategorySystem},
		// title keywords outrank the link
		{"Order placed", "/pay/", CategoryOrders},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CategoryOf(tc.title, tc.link),
			"title=%q link=%q", tc.title, tc.link)
	}
}

func TestNotifyStoresRow(t *testing.T) {
	db := openTestDB(t)
	d := NewDispatcher(db, nil)
	user := seedUser(t, db, nil)

	d.Notify(user.ID, "Order placed", "Borscht for 01.09.2026", "/profile/")

	var rows []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "Order placed", rows[0].Title)
	require.False(t, rows[0].IsRead)
}

func TestNotifySkipsDisabledCategory(t *testing.T) {
	db := openTestDB(t)
	d := NewDispatcher(db, nil)
	user := seedUser(t, db, models.PrefsMap{"notify_orders": false})

	d.Notify(user.ID, "Order placed", "", "/profile/")
	// other categories stay on
	d.Notify(user.ID, "Balance topped up", "+100", "/pay/")

	var rows []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "Balance topped up", rows[0].Title)
}

func TestNotifySkipsInactiveAndMissingUsers(t *testing.T) {
	db := openTestDB(t)
	d := NewDispatcher(db, nil)
	user := seedUser(t, db, nil)
	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	d.Notify(user.ID, "Order placed", "", "")
	d.Notify(99999, "Order placed", "", "")

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	require.Zero(t, count)
}

func TestNotifyEmailsOptedInUsers(t *testing.T) {
	db := openTestDB(t)
	mailer := &fakeMailer{}
	d := &Dispatcher{db: db, mailer: mailer, async: false}

	optedIn := seedUser(t, db, models.PrefsMap{"email_notifications": true})
	optedOut := seedUser(t, db, nil)

	d.Notify(optedIn.ID, "Order placed", "Borscht", "/profile/")
	d.Notify(optedOut.ID, "Order placed", "Borscht", "/profile/")

	require.Len(t, mailer.sent, 1)
	require.Equal(t, optedIn.Email+"|Order placed", mailer.sent[0])

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	require.EqualValues(t, 2, count, "the in-app copy is stored regardless of email opt-in")
}

func TestNotifyRolesFiltersByLevel(t *testing.T) {
	db := openTestDB(t)
	d := NewDispatcher(db, nil)

	student := seedUser(t, db, nil)
	chef := seedUser(t, db, nil)
	require.NoError(t, db.Model(chef).Update("role", models.RoleChef).Error)
	admin := seedUser(t, db, nil)
	require.NoError(t, db.Model(admin).Update("role", models.RoleAdmin).Error)

	d.NotifyRoles(models.RoleLevel(models.RoleChef), "Supply delay", "", "/kitchen/")

	var count int64
	db.Model(&models.Notification{}).Where("user_id = ?", student.ID).Count(&count)
	require.Zero(t, count)
	db.Model(&models.Notification{}).Where("user_id IN ?", []uint{chef.ID, admin.ID}).Count(&count)
	require.EqualValues(t, 2, count)
}
