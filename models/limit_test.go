package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimit_Remaining(t *testing.T) {
	t.Run("finite remainder clamps at zero", func(t *testing.T) {
		limit := FiniteLimit(100)

		rem, ok := limit.Remaining(40)
		assert.True(t, ok)
		assert.Equal(t, 60, rem)

		rem, ok = limit.Remaining(150)
		assert.True(t, ok)
		assert.Equal(t, 0, rem)
	})

	t.Run("unbounded has no finite remainder", func(t *testing.T) {
		_, ok := Unlimited().Remaining(1000000)
		assert.False(t, ok)
		assert.True(t, Unlimited().IsUnbounded())
	})
}

func TestLimit_PercentUsed(t *testing.T) {
	limit := FiniteLimit(100)

	pct, ok := limit.PercentUsed(25)
	assert.True(t, ok)
	assert.Equal(t, 25, pct)

	pct, _ = limit.PercentUsed(250)
	assert.Equal(t, 100, pct)

	pct, _ = limit.PercentUsed(-5)
	assert.Equal(t, 0, pct)

	pct, ok = FiniteLimit(0).PercentUsed(10)
	assert.True(t, ok)
	assert.Equal(t, 0, pct, "a zero cap reports zero percent, not a division error")

	_, ok = Unlimited().PercentUsed(10)
	assert.False(t, ok)
}

func TestLimit_MarshalJSON(t *testing.T) {
	finite, err := json.Marshal(FiniteLimit(500))
	assert.NoError(t, err)
	assert.Equal(t, "500", string(finite))

	unbounded, err := json.Marshal(Unlimited())
	assert.NoError(t, err)
	assert.Equal(t, `"unbounded"`, string(unbounded))
}

func TestBucketSnapshot_MarshalJSON(t *testing.T) {
	t.Run("finite bucket exposes remaining and percent", func(t *testing.T) {
		raw, err := json.Marshal(BucketSnapshot{Limit: FiniteLimit(100), Used: 98})
		assert.NoError(t, err)

		var out map[string]interface{}
		assert.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, float64(100), out["limit"])
		assert.Equal(t, float64(98), out["used"])
		assert.Equal(t, float64(2), out["remaining"])
		assert.Equal(t, float64(98), out["percent_used"])
	})

	t.Run("unbounded bucket uses the sentinel throughout", func(t *testing.T) {
		raw, err := json.Marshal(BucketSnapshot{Limit: Unlimited(), Used: 12345})
		assert.NoError(t, err)

		var out map[string]interface{}
		assert.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, "unbounded", out["limit"])
		assert.Equal(t, "unbounded", out["remaining"])
		assert.Equal(t, "unbounded", out["percent_used"])
		assert.Equal(t, float64(12345), out["used"])
	})
}

func TestEffectiveLimit_OverridePrecedence(t *testing.T) {
	row := &UserCredit{Plan: PlanFree}

	limit := row.EffectiveLimit(BucketChat)
	value, ok := limit.Value()
	assert.True(t, ok)
	assert.Equal(t, 100, value)

	override := 500
	row.ChatLimitOverride = &override
	value, _ = row.EffectiveLimit(BucketChat).Value()
	assert.Equal(t, 500, value)

	// Non-positive overrides are ignored.
	zero := 0
	row.ChatLimitOverride = &zero
	value, _ = row.EffectiveLimit(BucketChat).Value()
	assert.Equal(t, 100, value)
}

func TestLimitsFor_UnknownPlanFallsBack(t *testing.T) {
	unknown := LimitsFor("platinum")
	free := LimitsFor(Plan("free"))
	assert.Equal(t, free, unknown)

	assert.True(t, LimitsFor(PlanBusiness).Limit(BucketChat).IsUnbounded())
	assert.True(t, LimitsFor(PlanAdmin).Limit(BucketOCRBank).IsUnbounded())
}
