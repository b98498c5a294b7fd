package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/napassornsp/chat-new/models"
)

// CreditRepository defines the interface for interacting with per-user
// credit rows. Debits are single conditional statements so that a check
// and its debit can never be split across concurrent requests.
type CreditRepository interface {
	GetOrCreate(userID uint, period string) (*models.UserCredit, error)
	Get(userID uint) (*models.UserCredit, error)
	Save(row *models.UserCredit) error
	// ResetUsage zeroes all bucket counters and stamps the period
	// token, but only if the stored token differs. Calling it twice in
	// the same period is a no-op.
	ResetUsage(userID uint, period string) error
	// Debit unconditionally adds amount to a bucket counter. Used for
	// unbounded limits where no cap applies.
	Debit(userID uint, bucket models.Bucket, amount int) error
	// DebitIfWithinLimit adds amount to a bucket counter only when the
	// post-debit usage stays within limit, in one atomic statement.
	// Returns false when the row had insufficient remaining credit.
	DebitIfWithinLimit(userID uint, bucket models.Bucket, amount, limit int) (bool, error)
}

type creditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a new instance of CreditRepository.
func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &creditRepository{db: db}
}

// usedColumn maps a bucket to its usage column.
func usedColumn(bucket models.Bucket) string {
	switch bucket {
	case models.BucketOCRBill:
		return "ocr_bill_used"
	case models.BucketOCRBank:
		return "ocr_bank_used"
	default:
		return "chat_used"
	}
}

// GetOrCreate returns the user's credit row, creating it with free-plan
// defaults on first access. The create uses an ON CONFLICT DO NOTHING
// upsert keyed by the user id, so concurrent first accesses cannot
// produce duplicate rows.
func (r *creditRepository) GetOrCreate(userID uint, period string) (*models.UserCredit, error) {
	if userID == 0 {
		log.Printf("ERROR: [CreditRepository] GetOrCreate: userID cannot be zero.")
		return nil, errors.New("user ID cannot be zero")
	}

	now := time.Now().UTC()
	fresh := models.UserCredit{
		ID:              userID,
		Plan:            models.PlanFree,
		LastResetPeriod: period,
		LastResetAt:     now,
		UpdatedAt:       now,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		log.Printf("ERROR: [CreditRepository] Upsert of credit row for user %d failed: %v", userID, err)
		return nil, fmt.Errorf("failed to ensure credit row for user %d: %w", userID, err)
	}

	// Re-fetch: on conflict the struct above does not reflect the
	// stored row.
	return r.Get(userID)
}

// Get retrieves the credit row for a user. Missing rows are an error;
// callers that tolerate absence should use GetOrCreate.
func (r *creditRepository) Get(userID uint) (*models.UserCredit, error) {
	var row models.UserCredit
	if err := r.db.First(&row, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("credit row for user %d not found: %w", userID, err)
		}
		log.Printf("ERROR: [CreditRepository] Failed to fetch credit row for user %d: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch credit row for user %d: %w", userID, err)
	}
	return &row, nil
}

// Save persists the full row state.
func (r *creditRepository) Save(row *models.UserCredit) error {
	if row == nil {
		return errors.New("credit row cannot be nil")
	}
	row.UpdatedAt = time.Now().UTC()
	if err := r.db.Save(row).Error; err != nil {
		log.Printf("ERROR: [CreditRepository] Failed to save credit row for user %d: %v", row.ID, err)
		return fmt.Errorf("failed to save credit row for user %d: %w", row.ID, err)
	}
	return nil
}

// ResetUsage applies the monthly reset in one guarded statement. The
// period guard makes the reset idempotent even when two requests cross
// the month boundary together.
func (r *creditRepository) ResetUsage(userID uint, period string) error {
	now := time.Now().UTC()
	res := r.db.Model(&models.UserCredit{}).
		Where("id = ? AND last_reset_period <> ?", userID, period).
		Updates(map[string]interface{}{
			"chat_used":         0,
			"ocr_bill_used":     0,
			"ocr_bank_used":     0,
			"last_reset_period": period,
			"last_reset_at":     now,
			"updated_at":        now,
		})
	if res.Error != nil {
		log.Printf("ERROR: [CreditRepository] Monthly reset for user %d (period %s) failed: %v", userID, period, res.Error)
		return fmt.Errorf("failed to reset usage for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("INFO: [CreditRepository] Usage counters reset for user %d, period %s.", userID, period)
	}
	return nil
}

// Debit adds amount to the bucket counter without a cap check.
func (r *creditRepository) Debit(userID uint, bucket models.Bucket, amount int) error {
	col := usedColumn(bucket)
	res := r.db.Model(&models.UserCredit{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			col:          gorm.Expr(col+" + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		log.Printf("ERROR: [CreditRepository] Debit of %d %s credits for user %d failed: %v", amount, bucket, userID, res.Error)
		return fmt.Errorf("failed to debit %s credits for user %d: %w", bucket, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("credit row for user %d not found", userID)
	}
	return nil
}

// DebitIfWithinLimit performs the check and the debit as a single
// conditional UPDATE. Two concurrent calls for the last remaining
// credit serialize on the row; exactly one observes RowsAffected > 0.
func (r *creditRepository) DebitIfWithinLimit(userID uint, bucket models.Bucket, amount, limit int) (bool, error) {
	col := usedColumn(bucket)
	res := r.db.Model(&models.UserCredit{}).
		Where("id = ? AND "+col+" + ? <= ?", userID, amount, limit).
		Updates(map[string]interface{}{
			col:          gorm.Expr(col+" + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		log.Printf("ERROR: [CreditRepository] Conditional debit of %d %s credits for user %d failed: %v", amount, bucket, userID, res.Error)
		return false, fmt.Errorf("failed to debit %s credits for user %d: %w", bucket, userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
