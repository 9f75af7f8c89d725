package restrictions

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

func TestNormalizeTokens(t *testing.T) {
	require.Equal(t, []string{"milk", "nuts", "fish"},
		NormalizeTokens("Milk, NUTS;fish\nmilk"))
	require.Empty(t, NormalizeTokens(""))
	// single-character fragments are noise, not tokens
	require.Equal(t, []string{"ok"}, NormalizeTokens("a, b, ok"))
}

func TestEffectivePolicyFoldsLinks(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.GuardianLink{
		GuardianID: 1, StudentID: 10, IsActive: true,
		DailyLimit:        200,
		ForbiddenProducts: "chocolate",
		BlockedDishIDs:    []uint{7},
	}).Error)
	require.NoError(t, db.Create(&models.GuardianLink{
		GuardianID: 2, StudentID: 10, IsActive: true,
		DailyLimit:        300,
		ForbiddenProducts: "soda, chocolate",
		BlockedAllergens:  "peanut",
	}).Error)
	// inactive links must not contribute
	require.NoError(t, db.Create(&models.GuardianLink{
		GuardianID: 3, StudentID: 10, IsActive: false,
		DailyLimit: 50, ForbiddenProducts: "bread",
	}).Error)

	policy, err := NewEvaluator(db).EffectivePolicy(10)
	require.NoError(t, err)
	require.Equal(t, 200, policy.DailyLimit, "strictest non-zero cap wins")
	require.ElementsMatch(t, []string{"chocolate", "soda"}, policy.Forbidden)
	require.True(t, policy.BlockedDishIDs[7])
	require.Equal(t, []string{"peanut"}, policy.BlockedAllergens)
}

func TestEffectivePolicyZeroCapsMeanUnlimited(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.GuardianLink{
		GuardianID: 1, StudentID: 11, IsActive: true, DailyLimit: 0,
	}).Error)
	policy, err := NewEvaluator(db).EffectivePolicy(11)
	require.NoError(t, err)
	require.Zero(t, policy.DailyLimit)
}

func TestCheckItemForbiddenWinsFirst(t *testing.T) {
	item := &models.MenuItem{
		ID:          1,
		Title:       "Chocolate pudding",
		Composition: "milk, sugar, chocolate",
	}
	policy := Policy{
		Forbidden:      []string{"chocolate"},
		Required:       []string{"vegetables"},
		BlockedDishIDs: map[uint]bool{1: true},
	}
	reason := CheckItem(item, policy)
	require.Contains(t, reason, "forbidden")
	require.Contains(t, reason, "chocolate")
}

func TestCheckItemRequiredListsAllMissing(t *testing.T) {
	item := &models.MenuItem{Title: "Plain rice", Composition: "rice, salt"}
	policy := Policy{Required: []string{"vegetables", "meat"}}
	reason := CheckItem(item, policy)
	require.Contains(t, reason, "vegetables")
	require.Contains(t, reason, "meat")
}

func TestCheckItemAllowedList(t *testing.T) {
	policy := Policy{Allowed: []string{"soup", "salad"}}
	pass := &models.MenuItem{Title: "Tomato soup"}
	fail := &models.MenuItem{Title: "Burger"}
	require.Empty(t, CheckItem(pass, policy))
	require.NotEmpty(t, CheckItem(fail, policy))
}

func TestCheckItemBlockedDish(t *testing.T) {
	item := &models.MenuItem{ID: 42, Title: "Pasta"}
	policy := Policy{BlockedDishIDs: map[uint]bool{42: true}}
	require.Contains(t, CheckItem(item, policy), "blocked")
}

func TestCheckItemExplicitAllergenTagsPreferred(t *testing.T) {
	// composition mentions peanut oil but the explicit tag list does not
	// carry peanut; tags win over free text
	item := &models.MenuItem{
		Title:       "Fried noodles",
		Composition: "noodles fried in peanut oil",
		Allergens:   "gluten, soy",
	}
	policy := Policy{BlockedAllergens: []string{"peanut"}}
	require.Empty(t, CheckItem(item, policy))

	policy = Policy{BlockedAllergens: []string{"soy"}}
	require.Contains(t, CheckItem(item, policy), "soy")

	// without explicit tags the free-text scan applies
	untagged := &models.MenuItem{Title: "Fried noodles", Composition: "noodles fried in peanut oil"}
	policy = Policy{BlockedAllergens: []string{"peanut"}}
	require.Contains(t, CheckItem(untagged, policy), "peanut")
}

func TestCheckDailyLimit(t *testing.T) {
	policy := Policy{DailyLimit: 300}
	require.Empty(t, CheckDailyLimit(100, 100, policy))
	require.Empty(t, CheckDailyLimit(200, 100, policy), "exactly at the cap is allowed")
	require.NotEmpty(t, CheckDailyLimit(250, 100, policy))
	require.Empty(t, CheckDailyLimit(100000, 1, Policy{}), "no cap means unlimited")
}

func TestDailySpentSumsNonCancelled(t *testing.T) {
	db := openTestDB(t)
	day := DateOnly(time.Now())
	other := day.AddDate(0, 0, 1)
	for _, o := range []models.Order{
		{UserID: 5, PayerID: 5, MenuItemID: 1, Price: 100, Status: models.StatusOrdered, MealDate: day},
		{UserID: 5, PayerID: 5, MenuItemID: 1, Price: 150, Status: models.StatusReceived, MealDate: day},
		{UserID: 5, PayerID: 5, MenuItemID: 1, Price: 70, Status: models.StatusCancelled, MealDate: day},
		{UserID: 5, PayerID: 5, MenuItemID: 1, Price: 80, Status: models.StatusOrdered, MealDate: other},
		{UserID: 6, PayerID: 6, MenuItemID: 1, Price: 90, Status: models.StatusOrdered, MealDate: day},
	} {
		require.NoError(t, db.Create(&o).Error)
	}
	spent, err := NewEvaluator(db).DailySpent(5, day)
	require.NoError(t, err)
	require.Equal(t, 250, spent)
}

func TestAllergenWarnings(t *testing.T) {
	item := &models.MenuItem{Title: "Milk porridge", Composition: "milk, oats"}
	require.Equal(t, []string{"milk"}, AllergenWarnings("milk, fish", item))
	require.Empty(t, AllergenWarnings("", item))

	tagged := &models.MenuItem{Title: "Milk porridge", Allergens: "lactose"}
	require.Empty(t, AllergenWarnings("milk", tagged), "explicit tags take precedence")
	require.Equal(t, []string{"lactose"}, AllergenWarnings("lactose", tagged))
}
