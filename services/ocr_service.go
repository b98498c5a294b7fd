package services

import (
	"fmt"
	"log"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/realtime"
	"github.com/napassornsp/chat-new/repository"
)

// OCRService runs the stubbed extraction pipelines. Each analyze call
// passes the credit gate for its own bucket (bill and bank are metered
// independently), appends a history record and publishes the insert.
type OCRService interface {
	AnalyzeBill(user *models.User, fileName string) (*OCRResult, error)
	AnalyzeBank(user *models.User, fileName string) (*OCRResult, error)
}

// OCRResult is the success payload of an analyze call.
type OCRResult struct {
	Extraction map[string]interface{}
	Credits    models.CreditSnapshot
}

type ocrService struct {
	ocrRepo   repository.OCRRepository
	credits   CreditService
	publisher EventPublisher
}

// NewOCRService creates a new instance of OCRService.
func NewOCRService(ocrRepo repository.OCRRepository, credits CreditService, publisher EventPublisher) OCRService {
	return &ocrService{ocrRepo: ocrRepo, credits: credits, publisher: publisher}
}

// stubExtraction fabricates the payload a real OCR engine would return.
func stubExtraction(kind, fileName string) (string, models.JSONMap) {
	text := fmt.Sprintf("Demo %s extraction for %s", kind, fileName)
	meta := models.JSONMap{
		"engine": "stub",
		"kind":   kind,
		"pages":  1,
	}
	return text, meta
}

// AnalyzeBill runs one bill extraction for the user.
func (s *ocrService) AnalyzeBill(user *models.User, fileName string) (*OCRResult, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	credits, err := s.credits.TryConsume(user.ID, models.BucketOCRBill, 1)
	if err != nil {
		return nil, err
	}

	text, meta := stubExtraction("bill", fileName)
	extract := &models.OCRBillExtract{
		UserID:       user.ID,
		FileName:     &fileName,
		Text:         &text,
		MetadataJSON: meta,
	}
	if err := s.ocrRepo.CreateBillExtract(extract); err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.NewEvent(realtime.EventInsert, "ocr_bill_extractions", extract.Serialize(), nil))

	log.Printf("INFO: [OCRService] Bill extraction %d recorded for user %d.", extract.ID, user.ID)
	return &OCRResult{Extraction: extract.Serialize(), Credits: credits}, nil
}

// AnalyzeBank runs one bank-statement extraction for the user.
func (s *ocrService) AnalyzeBank(user *models.User, fileName string) (*OCRResult, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	credits, err := s.credits.TryConsume(user.ID, models.BucketOCRBank, 1)
	if err != nil {
		return nil, err
	}

	text, meta := stubExtraction("bank", fileName)
	extract := &models.OCRBankExtract{
		UserID:       user.ID,
		FileName:     &fileName,
		Text:         &text,
		MetadataJSON: meta,
	}
	if err := s.ocrRepo.CreateBankExtract(extract); err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.NewEvent(realtime.EventInsert, "ocr_bank_extractions", extract.Serialize(), nil))

	log.Printf("INFO: [OCRService] Bank extraction %d recorded for user %d.", extract.ID, user.ID)
	return &OCRResult{Extraction: extract.Serialize(), Credits: credits}, nil
}
