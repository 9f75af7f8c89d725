// Package orders implements the order/payment engine: it validates a
// candidate order against balance, guardian restrictions and timing rules,
// applies the debit and ledger entry atomically, and drives the order
// status machine. Every balance mutation commits in the same transaction
// as its ledger entry; a guarded UPDATE serializes debits per payer and a
// status compare-and-set serializes transitions per order.
package orders

import (
	"fmt"
	"log/slog"
	"time"

	"canteen-api/models"
	"canteen-api/notify"
	"canteen-api/restrictions"
	"canteen-api/statemachine"

	"gorm.io/gorm"
)

type Engine struct {
	db           *gorm.DB
	restrictions *restrictions.Evaluator
	dispatcher   *notify.Dispatcher
	now          func() time.Time
}

func NewEngine(db *gorm.DB, eval *restrictions.Evaluator, dispatcher *notify.Dispatcher) *Engine {
	return &Engine{db: db, restrictions: eval, dispatcher: dispatcher, now: time.Now}
}

// Place creates an order for mealDate, paid by payer. Consumer and payer
// may differ when a guardian pays for a linked student.
func (e *Engine) Place(consumerID, payerID, itemID uint, mealDate time.Time) (*models.Order, error) {
	return e.place(consumerID, payerID, itemID, restrictions.DateOnly(mealDate), false)
}

// PlacePreorder creates an order fixed to the next calendar day, refusing
// a duplicate active pre-order for the same consumer, item and date.
func (e *Engine) PlacePreorder(consumerID, payerID, itemID uint) (*models.Order, error) {
	tomorrow := restrictions.DateOnly(e.now()).AddDate(0, 0, 1)
	return e.place(consumerID, payerID, itemID, tomorrow, true)
}

func (e *Engine) place(consumerID, payerID, itemID uint, mealDate time.Time, preorder bool) (*models.Order, error) {
	var item models.MenuItem
	if err := e.db.First(&item, itemID).Error; err != nil {
		return nil, violationf(KindItemUnavailable, "menu item not found")
	}
	if !item.IsActive {
		return nil, violationf(KindItemUnavailable, "menu item is not available for ordering")
	}

	today := restrictions.DateOnly(e.now())
	if mealDate.Before(today) {
		return nil, violationf(KindPastDate, "cannot order for a past date")
	}

	if payerID != consumerID {
		var link models.GuardianLink
		err := e.db.Where("guardian_id = ? AND student_id = ? AND is_active = ?",
			payerID, consumerID, true).First(&link).Error
		if err != nil {
			return nil, violationf(KindForbidden, "student is not linked to this guardian")
		}
	}

	if preorder {
		var existing int64
		e.db.Model(&models.Order{}).
			Where("user_id = ? AND menu_item_id = ? AND pre_order_date = ? AND status = ?",
				consumerID, itemID, mealDate, models.StatusOrdered).
			Count(&existing)
		if existing > 0 {
			return nil, violationf(KindDuplicatePreorder, "a pre-order for this item and date already exists")
		}
	}

	policy, err := e.restrictions.EffectivePolicy(consumerID)
	if err != nil {
		return nil, fmt.Errorf("load effective policy: %w", err)
	}
	if reason := restrictions.CheckItem(&item, policy); reason != "" {
		return nil, violationf(KindRestriction, "%s", reason)
	}
	spent, err := e.restrictions.DailySpent(consumerID, mealDate)
	if err != nil {
		return nil, fmt.Errorf("sum daily spend: %w", err)
	}
	if reason := restrictions.CheckDailyLimit(spent, item.Price, policy); reason != "" {
		return nil, violationf(KindRestriction, "%s", reason)
	}

	kind := models.LedgerOrder
	description := fmt.Sprintf("Meal order: %s", item.Title)
	var preOrderDate *time.Time
	if preorder {
		kind = models.LedgerPreorder
		description = fmt.Sprintf("Pre-order: %s for %s", item.Title, mealDate.Format("02.01.2006"))
		d := mealDate
		preOrderDate = &d
	}

	order := &models.Order{
		UserID:       consumerID,
		PayerID:      payerID,
		MenuItemID:   item.ID,
		Price:        item.Price,
		Status:       models.StatusOrdered,
		MealDate:     mealDate,
		PreOrderDate: preOrderDate,
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		var payer models.User
		if err := tx.First(&payer, payerID).Error; err != nil {
			return violationf(KindNotFound, "payer account not found")
		}
		if !payer.IsActive {
			return violationf(KindForbidden, "payer account is deactivated")
		}
		if payer.Balance < item.Price {
			return violationf(KindInsufficientBalance,
				"insufficient balance: top up at least %d more", item.Price-payer.Balance)
		}
		// guarded decrement: a concurrent order by the same payer cannot
		// push the balance below zero
		res := tx.Model(&models.User{}).
			Where("id = ? AND balance >= ?", payerID, item.Price).
			UpdateColumn("balance", gorm.Expr("balance - ?", item.Price))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return violationf(KindInsufficientBalance,
				"insufficient balance: top up at least %d more", item.Price-payer.Balance)
		}
		if err := tx.Create(&models.LedgerEntry{
			UserID:       payerID,
			TargetUserID: consumerID,
			Amount:       -item.Price,
			Kind:         kind,
			Description:  description,
		}).Error; err != nil {
			return err
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}

	dateLabel := mealDate.Format("02.01.2006")
	e.dispatcher.Notify(payerID, "Order placed",
		fmt.Sprintf("%s for %s", item.Title, dateLabel), "/profile/")
	if consumerID != payerID {
		e.dispatcher.Notify(consumerID, "A parent placed an order for you",
			fmt.Sprintf("%s for %s", item.Title, dateLabel), "/profile/")
	}
	return order, nil
}

// actorOf maps an account to its role in the order's state machine.
func actorOf(order *models.Order, actorID uint) string {
	switch actorID {
	case order.UserID:
		return "consumer"
	case order.PayerID:
		return "payer"
	default:
		return ""
	}
}

// Cancel refunds and cancels an order. Only the consumer or the payer may
// cancel, and only while the order is still in ordered.
func (e *Engine) Cancel(orderID, actorID uint) error {
	var order models.Order
	if err := e.db.First(&order, orderID).Error; err != nil {
		return violationf(KindNotFound, "order not found")
	}
	actor := actorOf(&order, actorID)
	if actor == "" {
		return violationf(KindForbidden, "only the consumer or the payer may cancel this order")
	}
	if err := statemachine.CanTransition(order.Status, models.StatusCancelled, actor); err != nil {
		return violationf(KindInvalidTransition, "%s", err.Error())
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		// compare-and-set: a concurrent cancel or issue loses here
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.StatusOrdered).
			Update("status", models.StatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return violationf(KindInvalidTransition, "order is no longer cancellable")
		}

		payerID := order.PayerID
		if payerID == 0 {
			payerID = order.UserID
		}
		var payer models.User
		if err := tx.First(&payer, payerID).Error; err != nil {
			// the refund would have no wallet to land in; roll everything back
			slog.Error("payer account missing at cancel time", "order_id", orderID, "payer_id", payerID)
			return fmt.Errorf("payer account %d missing at cancel time: %w", payerID, err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", payerID).
			UpdateColumn("balance", gorm.Expr("balance + ?", order.Price)).Error; err != nil {
			return err
		}
		return tx.Create(&models.LedgerEntry{
			UserID:       payerID,
			TargetUserID: order.UserID,
			Amount:       order.Price,
			Kind:         models.LedgerRefund,
			Description:  "Refund for cancelled order",
		}).Error
	})
}

// Issue marks an ordered meal as handed out by the kitchen. No balance
// effect.
func (e *Engine) Issue(orderID uint) error {
	var order models.Order
	if err := e.db.First(&order, orderID).Error; err != nil {
		return violationf(KindNotFound, "order not found")
	}
	if err := statemachine.CanTransition(order.Status, models.StatusIssued, "kitchen"); err != nil {
		return violationf(KindInvalidTransition, "%s", err.Error())
	}
	now := e.now()
	res := e.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.StatusOrdered).
		Updates(map[string]any{"status": models.StatusIssued, "issued_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return violationf(KindInvalidTransition, "order is no longer in ordered state")
	}
	e.dispatcher.Notify(order.UserID, "Meal issued",
		"You can mark it as received in your profile.", "/profile/")
	return nil
}

// MarkReceived records that the consumer picked up the meal. Valid from
// ordered or issued; consumer only. No balance effect.
func (e *Engine) MarkReceived(orderID, actorID uint) error {
	var order models.Order
	if err := e.db.First(&order, orderID).Error; err != nil {
		return violationf(KindNotFound, "order not found")
	}
	if actorID != order.UserID {
		return violationf(KindForbidden, "only the consumer may confirm receipt")
	}
	if err := statemachine.CanTransition(order.Status, models.StatusReceived, "consumer"); err != nil {
		return violationf(KindInvalidTransition, "%s", err.Error())
	}
	now := e.now()
	res := e.db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID,
			[]models.OrderStatus{models.StatusOrdered, models.StatusIssued}).
		Updates(map[string]any{"status": models.StatusReceived, "received_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return violationf(KindInvalidTransition, "order is no longer receivable")
	}
	return nil
}

// TopUp credits a wallet and records the matching ledger entry. Returns
// the new balance.
func (e *Engine) TopUp(userID uint, amount int, kind, description string) (int, error) {
	if amount <= 0 {
		return 0, violationf(KindInvalidAmount, "top-up amount must be positive")
	}
	if kind == "" {
		kind = models.LedgerTopUp
	}
	if description == "" {
		description = "Balance top-up"
	}
	var newBalance int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return violationf(KindNotFound, "account not found")
		}
		if !user.IsActive {
			return violationf(KindForbidden, "account is deactivated")
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.LedgerEntry{
			UserID:       userID,
			TargetUserID: userID,
			Amount:       amount,
			Kind:         kind,
			Description:  description,
		}).Error; err != nil {
			return err
		}
		newBalance = user.Balance + amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.dispatcher.Notify(userID, "Balance topped up", fmt.Sprintf("+%d", amount), "/pay/")
	return newBalance, nil
}
