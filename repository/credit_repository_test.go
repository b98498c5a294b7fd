package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/napassornsp/chat-new/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.UserCredit{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestCreditRepository_GetOrCreate(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))

	first, err := repo.GetOrCreate(1, "2024-02")
	assert.NoError(t, err)
	assert.Equal(t, models.PlanFree, first.Plan)
	assert.Equal(t, "2024-02", first.LastResetPeriod)

	// A second call must return the stored row, not a fresh one.
	first.ChatUsed = 7
	assert.NoError(t, repo.Save(first))

	second, err := repo.GetOrCreate(1, "2024-02")
	assert.NoError(t, err)
	assert.Equal(t, 7, second.ChatUsed)

	_, err = repo.GetOrCreate(0, "2024-02")
	assert.Error(t, err)
}

func TestCreditRepository_DebitIfWithinLimit(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	row, err := repo.GetOrCreate(1, "2024-02")
	assert.NoError(t, err)

	row.ChatUsed = 99
	assert.NoError(t, repo.Save(row))

	t.Run("boundary debit fills the bucket exactly", func(t *testing.T) {
		ok, err := repo.DebitIfWithinLimit(1, models.BucketChat, 1, 100)
		assert.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.Get(1)
		assert.NoError(t, err)
		assert.Equal(t, 100, got.ChatUsed)
	})

	t.Run("debit past the limit is refused and leaves usage intact", func(t *testing.T) {
		ok, err := repo.DebitIfWithinLimit(1, models.BucketChat, 1, 100)
		assert.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.Get(1)
		assert.NoError(t, err)
		assert.Equal(t, 100, got.ChatUsed)
	})
}

func TestCreditRepository_DoubleSpendLastCredit(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	row, err := repo.GetOrCreate(1, "2024-02")
	assert.NoError(t, err)
	row.OCRBillUsed = 2
	assert.NoError(t, repo.Save(row))

	// Two requests race for the last credit; exactly one wins.
	firstOK, err := repo.DebitIfWithinLimit(1, models.BucketOCRBill, 1, 3)
	assert.NoError(t, err)
	secondOK, err := repo.DebitIfWithinLimit(1, models.BucketOCRBill, 1, 3)
	assert.NoError(t, err)

	assert.True(t, firstOK != secondOK, "exactly one debit must win the last credit")

	got, err := repo.Get(1)
	assert.NoError(t, err)
	assert.Equal(t, 3, got.OCRBillUsed)
}

func TestCreditRepository_ResetUsage(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	row, err := repo.GetOrCreate(1, "2024-01")
	assert.NoError(t, err)
	row.ChatUsed = 50
	row.OCRBillUsed = 2
	row.OCRBankUsed = 1
	assert.NoError(t, repo.Save(row))

	assert.NoError(t, repo.ResetUsage(1, "2024-02"))

	got, err := repo.Get(1)
	assert.NoError(t, err)
	assert.Equal(t, 0, got.ChatUsed)
	assert.Equal(t, 0, got.OCRBillUsed)
	assert.Equal(t, 0, got.OCRBankUsed)
	assert.Equal(t, "2024-02", got.LastResetPeriod)

	// The period guard makes a repeat call inert.
	got.ChatUsed = 5
	assert.NoError(t, repo.Save(got))
	assert.NoError(t, repo.ResetUsage(1, "2024-02"))

	again, err := repo.Get(1)
	assert.NoError(t, err)
	assert.Equal(t, 5, again.ChatUsed)
}

func TestCreditRepository_Debit(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	_, err := repo.GetOrCreate(1, "2024-02")
	assert.NoError(t, err)

	assert.NoError(t, repo.Debit(1, models.BucketChat, 3))
	assert.NoError(t, repo.Debit(1, models.BucketChat, 2))

	got, err := repo.Get(1)
	assert.NoError(t, err)
	assert.Equal(t, 5, got.ChatUsed)

	assert.Error(t, repo.Debit(99, models.BucketChat, 1), "debits against a missing row must fail loudly")
}
