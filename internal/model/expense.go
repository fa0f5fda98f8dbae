package model

import "time"

// Expense is one uploaded expense line item.
type Expense struct {
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"created_at"`
	UserID       string    `json:"user_id"`
	Description  string    `json:"description"`
	CurrencyCode string    `json:"currency_code"`
	Category     string    `json:"category"`
	ID           int64     `json:"id"`
	FileID       int64     `json:"file_id"`
	Amount       float64   `json:"expense"`
}

// UploadStatus tracks an uploaded file through ingestion.
type UploadStatus string

// Upload status constants.
const (
	UploadPending    UploadStatus = "PENDING"
	UploadProcessing UploadStatus = "PROCESSING"
	UploadSuccess    UploadStatus = "SUCCESS"
	UploadFailed     UploadStatus = "FAILED"
)

// UploadHistory records one file upload attempt. Its ID doubles as the file identifier
// stamped on every expense row inserted from that file.
type UploadHistory struct {
	UploadedAt time.Time    `json:"uploaded_at"`
	UserID     string       `json:"-"`
	FileName   string       `json:"file_name"`
	Status     UploadStatus `json:"status"`
	Message    string       `json:"message"`
	ID         int64        `json:"id"`
}
