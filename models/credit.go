package models

import (
	"strings"
	"time"
)

// Plan is a subscription tier. It determines the default monthly limit
// for every credit bucket.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPlus     Plan = "plus"
	PlanBusiness Plan = "business"
	PlanAdmin    Plan = "admin"
)

// Bucket is one of the independently metered usage categories.
type Bucket string

const (
	BucketChat    Bucket = "chat"
	BucketOCRBill Bucket = "ocr_bill"
	BucketOCRBank Bucket = "ocr_bank"
)

// BucketLimits groups the per-bucket caps of a plan or of one user's
// effective allowance.
type BucketLimits struct {
	Chat Limit
	Bill Limit
	Bank Limit
}

// Limit returns the cap for the given bucket.
func (b BucketLimits) Limit(bucket Bucket) Limit {
	switch bucket {
	case BucketOCRBill:
		return b.Bill
	case BucketOCRBank:
		return b.Bank
	default:
		return b.Chat
	}
}

// planLimits is the static plan catalog. Business and admin tiers are
// contract-negotiated and carry no automatic cap.
var planLimits = map[Plan]BucketLimits{
	PlanFree:     {Chat: FiniteLimit(100), Bill: FiniteLimit(3), Bank: FiniteLimit(3)},
	PlanPlus:     {Chat: FiniteLimit(500), Bill: FiniteLimit(20), Bank: FiniteLimit(20)},
	PlanBusiness: {Chat: Unlimited(), Bill: Unlimited(), Bank: Unlimited()},
	PlanAdmin:    {Chat: Unlimited(), Bill: Unlimited(), Bank: Unlimited()},
}

// LimitsFor returns the default bucket limits for a plan. Unknown plan
// names fall back to the free tier.
func LimitsFor(plan Plan) BucketLimits {
	if lim, ok := planLimits[plan]; ok {
		return lim
	}
	return planLimits[PlanFree]
}

// KnownPlan reports whether name is a plan in the catalog.
func KnownPlan(name string) bool {
	_, ok := planLimits[Plan(name)]
	return ok
}

// chatVersionCost maps the chat version tier to its per-turn credit
// cost. Unrecognized tiers fall back to the V2 cost.
var chatVersionCost = map[string]int{
	"V1": 1,
	"V2": 2,
	"V3": 3,
}

// DefaultChatVersion is assumed when a chat request carries no version.
const DefaultChatVersion = "V2"

// ChatVersionCost returns the credit cost of one chat turn at the given
// version tier.
func ChatVersionCost(version string) int {
	if cost, ok := chatVersionCost[strings.ToUpper(version)]; ok {
		return cost
	}
	return chatVersionCost[DefaultChatVersion]
}

// PeriodLayout formats a time as the billing period token (calendar
// month, UTC).
const PeriodLayout = "2006-01"

// UserCredit tracks one user's monthly credit usage. The primary key is
// the owning user's id, and the row is created lazily on first access.
// Usage counters only ever grow within a billing period; the monthly
// reset policy zeroes them when the stored period token falls behind
// the wall clock.
type UserCredit struct {
	ID   uint `gorm:"primaryKey"` // same as users.id
	Plan Plan `gorm:"type:varchar(20);default:'free'"`

	// Per-bucket usage within the current period.
	ChatUsed    int `gorm:"default:0"`
	OCRBillUsed int `gorm:"column:ocr_bill_used;default:0"`
	OCRBankUsed int `gorm:"column:ocr_bank_used;default:0"`

	// Per-user override limits. When set and positive they take
	// precedence over the plan default for that bucket.
	ChatLimitOverride    *int
	OCRBillLimitOverride *int `gorm:"column:ocr_bill_limit_override"`
	OCRBankLimitOverride *int `gorm:"column:ocr_bank_limit_override"`

	// LastResetPeriod is the billing period token (PeriodLayout, UTC)
	// already applied to this row.
	LastResetPeriod string `gorm:"type:varchar(7)"`
	LastResetAt     time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for the UserCredit model.
func (UserCredit) TableName() string {
	return "user_credits"
}

// Used returns the usage counter for a bucket.
func (c *UserCredit) Used(bucket Bucket) int {
	switch bucket {
	case BucketOCRBill:
		return c.OCRBillUsed
	case BucketOCRBank:
		return c.OCRBankUsed
	default:
		return c.ChatUsed
	}
}

// SetUsed overwrites the usage counter for a bucket.
func (c *UserCredit) SetUsed(bucket Bucket, used int) {
	switch bucket {
	case BucketOCRBill:
		c.OCRBillUsed = used
	case BucketOCRBank:
		c.OCRBankUsed = used
	default:
		c.ChatUsed = used
	}
}

// override returns the per-user override for a bucket, or nil.
func (c *UserCredit) override(bucket Bucket) *int {
	switch bucket {
	case BucketOCRBill:
		return c.OCRBillLimitOverride
	case BucketOCRBank:
		return c.OCRBankLimitOverride
	default:
		return c.ChatLimitOverride
	}
}

// EffectiveLimit returns the cap that applies to a bucket: the per-user
// override when present and positive, else the plan default.
func (c *UserCredit) EffectiveLimit(bucket Bucket) Limit {
	if o := c.override(bucket); o != nil && *o > 0 {
		return FiniteLimit(*o)
	}
	return LimitsFor(c.Plan).Limit(bucket)
}

// EffectiveLimits returns the caps for all three buckets.
func (c *UserCredit) EffectiveLimits() BucketLimits {
	return BucketLimits{
		Chat: c.EffectiveLimit(BucketChat),
		Bill: c.EffectiveLimit(BucketOCRBill),
		Bank: c.EffectiveLimit(BucketOCRBank),
	}
}

// Snapshot bakes the display payload for the row's current state.
func (c *UserCredit) Snapshot() CreditSnapshot {
	return CreditSnapshot{
		Plan:        c.Plan,
		Chat:        BucketSnapshot{Limit: c.EffectiveLimit(BucketChat), Used: c.ChatUsed},
		OCRBill:     BucketSnapshot{Limit: c.EffectiveLimit(BucketOCRBill), Used: c.OCRBillUsed},
		OCRBank:     BucketSnapshot{Limit: c.EffectiveLimit(BucketOCRBank), Used: c.OCRBankUsed},
		LastResetAt: isoTime(c.LastResetAt),
	}
}

// Serialize returns the generic row shape for a credit record.
func (c *UserCredit) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"id":                      c.ID,
		"plan":                    string(c.Plan),
		"chat_used":               c.ChatUsed,
		"ocr_bill_used":           c.OCRBillUsed,
		"ocr_bank_used":           c.OCRBankUsed,
		"chat_limit_override":     intPtrOrNil(c.ChatLimitOverride),
		"ocr_bill_limit_override": intPtrOrNil(c.OCRBillLimitOverride),
		"ocr_bank_limit_override": intPtrOrNil(c.OCRBankLimitOverride),
		"last_reset_period":       c.LastResetPeriod,
		"last_reset_at":           isoTime(c.LastResetAt),
		"updated_at":              isoTime(c.UpdatedAt),
	}
}

// BucketSnapshot is the display state of one bucket. Its JSON form is
// {limit, used, remaining, percent_used}; for an unbounded limit the
// limit, remaining and percent_used fields carry the unbounded sentinel
// instead of a number.
type BucketSnapshot struct {
	Limit Limit
	Used  int
}

// Remaining returns max(0, limit-used); ok=false when unbounded.
func (b BucketSnapshot) Remaining() (int, bool) {
	return b.Limit.Remaining(b.Used)
}

// MarshalJSON implements the payload contract described above.
func (b BucketSnapshot) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"limit": b.Limit,
		"used":  b.Used,
	}
	if rem, ok := b.Limit.Remaining(b.Used); ok {
		out["remaining"] = rem
		pct, _ := b.Limit.PercentUsed(b.Used)
		out["percent_used"] = pct
	} else {
		out["remaining"] = UnboundedSentinel
		out["percent_used"] = UnboundedSentinel
	}
	return marshalMap(out)
}

// CreditSnapshot is the credits payload exposed by the RPCs and
// attached to insufficient-credit denials.
type CreditSnapshot struct {
	Plan        Plan           `json:"plan"`
	Chat        BucketSnapshot `json:"chat"`
	OCRBill     BucketSnapshot `json:"ocr_bill"`
	OCRBank     BucketSnapshot `json:"ocr_bank"`
	LastResetAt string         `json:"last_reset_at"`
}

// Bucket returns the snapshot for the named bucket.
func (s CreditSnapshot) Bucket(bucket Bucket) BucketSnapshot {
	switch bucket {
	case BucketOCRBill:
		return s.OCRBill
	case BucketOCRBank:
		return s.OCRBank
	default:
		return s.Chat
	}
}
