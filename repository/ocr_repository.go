package repository

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/napassornsp/chat-new/models"
)

// OCRRepository defines the interface for the append-only extraction
// history tables.
type OCRRepository interface {
	CreateBillExtract(extract *models.OCRBillExtract) error
	CreateBankExtract(extract *models.OCRBankExtract) error
}

type ocrRepository struct {
	db *gorm.DB
}

// NewOCRRepository creates a new instance of OCRRepository.
func NewOCRRepository(db *gorm.DB) OCRRepository {
	return &ocrRepository{db: db}
}

// CreateBillExtract appends a bill extraction record.
func (r *ocrRepository) CreateBillExtract(extract *models.OCRBillExtract) error {
	if extract == nil {
		return errors.New("extract cannot be nil")
	}
	if err := r.db.Create(extract).Error; err != nil {
		log.Printf("ERROR: [OCRRepository] Failed to create bill extraction for user %d: %v", extract.UserID, err)
		return fmt.Errorf("failed to create bill extraction for user %d: %w", extract.UserID, err)
	}
	return nil
}

// CreateBankExtract appends a bank extraction record.
func (r *ocrRepository) CreateBankExtract(extract *models.OCRBankExtract) error {
	if extract == nil {
		return errors.New("extract cannot be nil")
	}
	if err := r.db.Create(extract).Error; err != nil {
		log.Printf("ERROR: [OCRRepository] Failed to create bank extraction for user %d: %v", extract.UserID, err)
		return fmt.Errorf("failed to create bank extraction for user %d: %w", extract.UserID, err)
	}
	return nil
}
