// Package restrictions folds guardian-imposed policies into one effective
// policy per student and checks candidate orders against it. The checks are
// pure functions over normalized lowercase text so they stay independently
// testable; only policy loading and daily-spend sums touch the database.
package restrictions

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"canteen-api/models"

	"gorm.io/gorm"
)

// Policy is the folded result of all active guardian links for one student.
type Policy struct {
	DailyLimit       int      // minimum of all non-zero caps; 0 = unlimited
	Allowed          []string // union; non-empty means at least one must match
	Required         []string // union; every token must be present
	Forbidden        []string // union; any match vetoes
	BlockedDishIDs   map[uint]bool
	BlockedAllergens []string
}

var tokenSplit = regexp.MustCompile(`[,;\n\r]+`)

// NormalizeTokens splits a raw comma/semicolon/newline separated list into
// lowercase tokens, dropping anything shorter than two characters and
// duplicates, preserving first-seen order.
func NormalizeTokens(raw string) []string {
	var result []string
	seen := map[string]bool{}
	for _, chunk := range tokenSplit.Split(raw, -1) {
		token := strings.ToLower(strings.TrimSpace(chunk))
		if len([]rune(token)) < 2 || seen[token] {
			continue
		}
		seen[token] = true
		result = append(result, token)
	}
	return result
}

// StringifyTokens is the inverse of NormalizeTokens for storage/display.
func StringifyTokens(tokens []string) string {
	return strings.Join(tokens, ", ")
}

type Evaluator struct {
	db *gorm.DB
}

func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db}
}

// EffectivePolicy loads all active guardian links for the student and folds
// them: token sets union, the daily cap is the strictest non-zero one.
func (e *Evaluator) EffectivePolicy(studentID uint) (Policy, error) {
	var links []models.GuardianLink
	if err := e.db.Where("student_id = ? AND is_active = ?", studentID, true).
		Find(&links).Error; err != nil {
		return Policy{}, err
	}

	policy := Policy{BlockedDishIDs: map[uint]bool{}}
	var allowed, required, forbidden, allergens []string
	for _, link := range links {
		if link.DailyLimit > 0 && (policy.DailyLimit == 0 || link.DailyLimit < policy.DailyLimit) {
			policy.DailyLimit = link.DailyLimit
		}
		allowed = append(allowed, NormalizeTokens(link.AllowedProducts)...)
		required = append(required, NormalizeTokens(link.RequiredProducts)...)
		forbidden = append(forbidden, NormalizeTokens(link.ForbiddenProducts)...)
		allergens = append(allergens, NormalizeTokens(link.BlockedAllergens)...)
		for _, id := range link.BlockedDishIDs {
			policy.BlockedDishIDs[id] = true
		}
	}
	// re-normalize the concatenations to dedupe across links
	policy.Allowed = NormalizeTokens(StringifyTokens(allowed))
	policy.Required = NormalizeTokens(StringifyTokens(required))
	policy.Forbidden = NormalizeTokens(StringifyTokens(forbidden))
	policy.BlockedAllergens = NormalizeTokens(StringifyTokens(allergens))
	return policy, nil
}

// DailySpent sums the snapshotted prices of all non-cancelled orders for
// the student on the given date.
func (e *Evaluator) DailySpent(studentID uint, date time.Time) (int, error) {
	var total int
	err := e.db.Model(&models.Order{}).
		Where("user_id = ? AND meal_date = ? AND status IN ?",
			studentID, DateOnly(date),
			[]models.OrderStatus{models.StatusOrdered, models.StatusIssued, models.StatusReceived}).
		Select("COALESCE(SUM(price), 0)").Scan(&total).Error
	return total, err
}

// DateOnly truncates a timestamp to its UTC calendar day; meal dates are
// stored and compared this way.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// searchText builds the lowercase haystack for free-text matching.
func searchText(item *models.MenuItem) string {
	return strings.ToLower(item.Title + " " + item.Description + " " + item.Composition)
}

// explicitAllergens returns the item's explicit allergen tags, if any.
func explicitAllergens(item *models.MenuItem) []string {
	return NormalizeTokens(item.Allergens)
}

// CheckItem tests one menu item against a policy. Returns an empty string
// when the item passes, otherwise a human-readable rejection reason. Checks
// short-circuit in a fixed order: forbidden, required, allowed, blocked
// dish ids, blocked allergens.
func CheckItem(item *models.MenuItem, policy Policy) string {
	text := searchText(item)

	for _, token := range policy.Forbidden {
		if strings.Contains(text, token) {
			return fmt.Sprintf("item contains a forbidden product: %s", token)
		}
	}

	var missing []string
	for _, token := range policy.Required {
		if !strings.Contains(text, token) {
			missing = append(missing, token)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("item is missing required products: %s", strings.Join(missing, ", "))
	}

	if len(policy.Allowed) > 0 {
		found := false
		for _, token := range policy.Allowed {
			if strings.Contains(text, token) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("item is not in the allowed product list: %s", strings.Join(policy.Allowed, ", "))
		}
	}

	if policy.BlockedDishIDs[item.ID] {
		return "item is blocked by a guardian restriction"
	}

	if len(policy.BlockedAllergens) > 0 {
		if reason := matchAllergens(item, policy.BlockedAllergens, text); reason != "" {
			return reason
		}
	}
	return ""
}

// matchAllergens prefers the item's explicit allergen tags over scanning
// free text.
func matchAllergens(item *models.MenuItem, blocked []string, text string) string {
	explicit := explicitAllergens(item)
	if len(explicit) > 0 {
		tagged := map[string]bool{}
		for _, tag := range explicit {
			tagged[tag] = true
		}
		for _, allergen := range blocked {
			if tagged[allergen] {
				return fmt.Sprintf("item contains a blocked allergen: %s", allergen)
			}
		}
		return ""
	}
	for _, allergen := range blocked {
		if strings.Contains(text, allergen) {
			return fmt.Sprintf("item contains a blocked allergen: %s", allergen)
		}
	}
	return ""
}

// CheckDailyLimit tests whether adding price to what was already spent on
// the day would exceed the cap. Empty string means within limits.
func CheckDailyLimit(spent, price int, policy Policy) string {
	if policy.DailyLimit <= 0 {
		return ""
	}
	if spent+price > policy.DailyLimit {
		return fmt.Sprintf("daily limit of %d exceeded: %d already ordered today", policy.DailyLimit, spent)
	}
	return ""
}

// AllergenWarnings lists the viewer's own allergy tags found in an item,
// preferring explicit tags over free-text scanning. Advisory only; it does
// not block an order.
func AllergenWarnings(userAllergies string, item *models.MenuItem) []string {
	allergens := NormalizeTokens(userAllergies)
	if len(allergens) == 0 {
		return nil
	}
	explicit := explicitAllergens(item)
	if len(explicit) > 0 {
		tagged := map[string]bool{}
		for _, tag := range explicit {
			tagged[tag] = true
		}
		var found []string
		for _, a := range allergens {
			if tagged[a] {
				found = append(found, a)
			}
		}
		return found
	}
	text := searchText(item)
	var found []string
	for _, a := range allergens {
		if strings.Contains(text, a) {
			found = append(found, a)
		}
	}
	return found
}
