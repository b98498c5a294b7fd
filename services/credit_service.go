package services

import (
	"fmt"
	"log"
	"time"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/repository"
)

// CreditService owns the plan catalog rules, the lazy monthly reset
// policy and the credit gate. Every usage read or mutation goes through
// the reset policy first, so the first request of a new month never
// observes stale counters.
type CreditService interface {
	// GetOrCreate loads the user's ledger row, creating it on first
	// access and applying the monthly reset policy.
	GetOrCreate(userID uint) (*models.UserCredit, error)
	// Snapshot returns the display payload for the user's current state.
	Snapshot(userID uint) (models.CreditSnapshot, error)
	// SetPlan switches the user's plan and zeroes usage for the new
	// period. An unknown plan name is rejected with ErrUnknownPlan.
	SetPlan(userID uint, plan string) (models.CreditSnapshot, error)
	// ResetMonthly zeroes usage immediately regardless of period.
	ResetMonthly(userID uint) (models.CreditSnapshot, error)
	// TryConsume debits amount from a bucket, or fails with a typed
	// InsufficientCreditsError carrying the current snapshot.
	TryConsume(userID uint, bucket models.Bucket, amount int) (models.CreditSnapshot, error)
}

type creditService struct {
	repo repository.CreditRepository
	now  func() time.Time
}

// NewCreditService creates a new instance of CreditService.
func NewCreditService(repo repository.CreditRepository) CreditService {
	return &creditService{repo: repo, now: time.Now}
}

// currentPeriod returns the billing period token for the wall clock
// (calendar month, UTC).
func (s *creditService) currentPeriod() string {
	return s.now().UTC().Format(models.PeriodLayout)
}

// GetOrCreate loads or lazily creates the ledger row, backfills a
// missing plan without fabricating unused credit, and applies the
// monthly reset policy.
func (s *creditService) GetOrCreate(userID uint) (*models.UserCredit, error) {
	row, err := s.repo.GetOrCreate(userID, s.currentPeriod())
	if err != nil {
		return nil, err
	}

	// Legacy rows predating the plan column sync to free without
	// touching usage, so no unused credit appears out of thin air.
	if row.Plan == "" {
		row.Plan = models.PlanFree
		if err := s.repo.Save(row); err != nil {
			return nil, err
		}
		log.Printf("INFO: [CreditService] Backfilled missing plan for user %d to '%s'.", userID, models.PlanFree)
	}

	if err := s.applyResetIfNeeded(row); err != nil {
		return nil, err
	}
	return row, nil
}

// applyResetIfNeeded zeroes the usage counters when the stored period
// token has fallen behind the wall clock. Idempotent within a period:
// the repository guard only fires when the token differs.
func (s *creditService) applyResetIfNeeded(row *models.UserCredit) error {
	period := s.currentPeriod()
	if row.LastResetPeriod == period {
		return nil
	}
	if err := s.repo.ResetUsage(row.ID, period); err != nil {
		return err
	}
	now := s.now().UTC()
	row.ChatUsed = 0
	row.OCRBillUsed = 0
	row.OCRBankUsed = 0
	row.LastResetPeriod = period
	row.LastResetAt = now
	row.UpdatedAt = now
	log.Printf("INFO: [CreditService] Monthly reset applied for user %d (period %s).", row.ID, period)
	return nil
}

// Snapshot returns the baked display payload.
func (s *creditService) Snapshot(userID uint) (models.CreditSnapshot, error) {
	row, err := s.GetOrCreate(userID)
	if err != nil {
		return models.CreditSnapshot{}, err
	}
	return row.Snapshot(), nil
}

// SetPlan switches plan and resets all buckets for the current period.
func (s *creditService) SetPlan(userID uint, plan string) (models.CreditSnapshot, error) {
	if !models.KnownPlan(plan) {
		return models.CreditSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	row, err := s.GetOrCreate(userID)
	if err != nil {
		return models.CreditSnapshot{}, err
	}
	now := s.now().UTC()
	row.Plan = models.Plan(plan)
	row.ChatUsed = 0
	row.OCRBillUsed = 0
	row.OCRBankUsed = 0
	row.LastResetPeriod = s.currentPeriod()
	row.LastResetAt = now
	if err := s.repo.Save(row); err != nil {
		return models.CreditSnapshot{}, err
	}
	log.Printf("INFO: [CreditService] User %d switched to plan '%s'.", userID, plan)
	return row.Snapshot(), nil
}

// ResetMonthly zeroes usage on demand (admin/RPC path). Unlike the lazy
// policy this is not period-guarded.
func (s *creditService) ResetMonthly(userID uint) (models.CreditSnapshot, error) {
	row, err := s.GetOrCreate(userID)
	if err != nil {
		return models.CreditSnapshot{}, err
	}
	now := s.now().UTC()
	row.ChatUsed = 0
	row.OCRBillUsed = 0
	row.OCRBankUsed = 0
	row.LastResetPeriod = s.currentPeriod()
	row.LastResetAt = now
	if err := s.repo.Save(row); err != nil {
		return models.CreditSnapshot{}, err
	}
	log.Printf("INFO: [CreditService] Manual credit reset for user %d.", userID)
	return row.Snapshot(), nil
}

// TryConsume is the credit gate. The finite path folds the remaining
// check and the debit into one conditional statement at the repository,
// so two concurrent requests can never both win the last credit.
func (s *creditService) TryConsume(userID uint, bucket models.Bucket, amount int) (models.CreditSnapshot, error) {
	if amount <= 0 {
		return models.CreditSnapshot{}, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	row, err := s.GetOrCreate(userID)
	if err != nil {
		return models.CreditSnapshot{}, err
	}

	limit := row.EffectiveLimit(bucket)
	if limit.IsUnbounded() {
		// Contract tiers are never denied; usage is still recorded.
		if err := s.repo.Debit(userID, bucket, amount); err != nil {
			return models.CreditSnapshot{}, err
		}
		row.SetUsed(bucket, row.Used(bucket)+amount)
		return row.Snapshot(), nil
	}

	limitValue, _ := limit.Value()
	ok, err := s.repo.DebitIfWithinLimit(userID, bucket, amount, limitValue)
	if err != nil {
		return models.CreditSnapshot{}, err
	}
	if !ok {
		log.Printf("INFO: [CreditService] Denied %d %s credits for user %d: used %d of %d.",
			amount, bucket, userID, row.Used(bucket), limitValue)
		return models.CreditSnapshot{}, &InsufficientCreditsError{
			Bucket:  bucket,
			Need:    amount,
			Credits: row.Snapshot(),
		}
	}
	row.SetUsed(bucket, row.Used(bucket)+amount)
	return row.Snapshot(), nil
}
