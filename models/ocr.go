package models

import "time"

// OCRBillExtract is one bill-OCR run for a user. Rows are append-only
// history; the approval flag marks extractions a user has signed off.
type OCRBillExtract struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"index"`
	FileName     *string   `json:"file_name"`
	FileURL      *string   `json:"file_url"`
	Text         *string   `json:"text"`
	MetadataJSON JSONMap   `json:"metadata" gorm:"column:metadata_json"`
	Approved     bool      `json:"approved" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for the OCRBillExtract model.
func (OCRBillExtract) TableName() string {
	return "ocr_bill_extractions"
}

// Serialize returns the generic row shape. The metadata_json column
// surfaces under the external "metadata" alias.
func (e *OCRBillExtract) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"id":         e.ID,
		"user_id":    e.UserID,
		"file_name":  strPtrOrNil(e.FileName),
		"file_url":   strPtrOrNil(e.FileURL),
		"text":       strPtrOrNil(e.Text),
		"metadata":   map[string]interface{}(e.MetadataJSON),
		"approved":   e.Approved,
		"created_at": isoTime(e.CreatedAt),
	}
}

// OCRBankExtract is one bank-statement OCR run for a user. Identical in
// shape to OCRBillExtract but metered from its own credit bucket.
type OCRBankExtract struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"index"`
	FileName     *string   `json:"file_name"`
	FileURL      *string   `json:"file_url"`
	Text         *string   `json:"text"`
	MetadataJSON JSONMap   `json:"metadata" gorm:"column:metadata_json"`
	Approved     bool      `json:"approved" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for the OCRBankExtract model.
func (OCRBankExtract) TableName() string {
	return "ocr_bank_extractions"
}

// Serialize returns the generic row shape for a bank extraction.
func (e *OCRBankExtract) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"id":         e.ID,
		"user_id":    e.UserID,
		"file_name":  strPtrOrNil(e.FileName),
		"file_url":   strPtrOrNil(e.FileURL),
		"text":       strPtrOrNil(e.Text),
		"metadata":   map[string]interface{}(e.MetadataJSON),
		"approved":   e.Approved,
		"created_at": isoTime(e.CreatedAt),
	}
}
