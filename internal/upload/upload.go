// Package upload ingests expense files into storage and records each attempt
// in the upload history.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/config"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/observability"
	"github.com/Veraticus/spice-insights/internal/ofx"
	"github.com/Veraticus/spice-insights/internal/service"
)

// History messages.
const (
	MsgInProgress = "upload in progress"
	MsgSuccess    = "uploaded successfully"
	MsgFailed     = "internal server error"
)

// ErrUnsupportedFileType is returned for a file type key with no metadata.
var ErrUnsupportedFileType = fmt.Errorf("%w: unsupported file type", common.ErrValidation)

// Trigger starts classification of a freshly uploaded file.
type Trigger interface {
	Submit(ctx context.Context, userID string, fileID int64) (*model.ClassificationJob, error)
}

// Request is one uploaded file.
type Request struct {
	Body     io.Reader
	UserID   string
	FileName string
	// FileType selects the metadata entry describing the file's columns.
	FileType string
}

// Result summarizes a successful upload.
type Result struct {
	Job      *model.ClassificationJob `json:"job,omitempty"`
	UploadID int64                    `json:"upload_id"`
	Inserted int64                    `json:"inserted"`
	Rows     int                      `json:"rows"`
	Dropped  int                      `json:"dropped"`
}

// Service ingests uploads.
type Service struct {
	expenses  service.ExpenseStorage
	uploads   service.UploadStorage
	trigger   Trigger
	fileTypes config.FileTypes
	logger    *slog.Logger
}

// NewService creates an upload service. trigger may be nil.
func NewService(expenses service.ExpenseStorage, uploads service.UploadStorage, fileTypes config.FileTypes, trigger Trigger) *Service {
	return &Service{
		expenses:  expenses,
		uploads:   uploads,
		trigger:   trigger,
		fileTypes: fileTypes,
		logger:    slog.Default(),
	}
}

// Upload validates, parses and stores one file. Validation failures are
// common.UserError values wrapping common.ErrValidation.
func (s *Service) Upload(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", common.ErrValidation)
	}
	ft, ok := s.fileTypes.Lookup(req.FileType)
	if !ok {
		return nil, common.NewUserError("Unsupported file type", fmt.Errorf("%w: %q", ErrUnsupportedFileType, req.FileType))
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = req.FileType
	}
	history := &model.UploadHistory{
		UserID:   req.UserID,
		FileName: fileName,
		Status:   model.UploadProcessing,
		Message:  MsgInProgress,
	}
	if err := s.uploads.CreateUpload(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	rows, err := s.parse(ctx, req.Body, ft)
	if err != nil {
		var missing *MissingColumnsError
		if errors.As(err, &missing) {
			s.finish(ctx, history.ID, model.UploadFailed, missing.Error())
			return nil, common.NewUserError(missing.Error(), err)
		}
		if errors.Is(err, common.ErrValidation) {
			s.finish(ctx, history.ID, model.UploadFailed, err.Error())
			return nil, common.NewUserError("Invalid file", err)
		}
		s.finish(ctx, history.ID, model.UploadFailed, MsgFailed)
		return nil, err
	}

	for i := range rows.expenses {
		rows.expenses[i].UserID = req.UserID
		rows.expenses[i].FileID = history.ID
	}

	inserted, err := s.expenses.InsertExpenses(ctx, rows.expenses)
	if err != nil {
		s.finish(ctx, history.ID, model.UploadFailed, MsgFailed)
		return nil, fmt.Errorf("failed to insert expenses: %w", err)
	}
	s.finish(ctx, history.ID, model.UploadSuccess, MsgSuccess)

	result := &Result{
		UploadID: history.ID,
		Inserted: inserted,
		Rows:     len(rows.expenses),
		Dropped:  rows.dropped,
	}

	s.logger.InfoContext(ctx, "Stored uploaded expenses",
		"user_id", req.UserID,
		"file_id", history.ID,
		"file_type", req.FileType,
		"rows", result.Rows,
		"inserted", inserted,
		"dropped", rows.dropped)

	if ft.ModelProcessing && s.trigger != nil && inserted > 0 {
		job, err := s.trigger.Submit(ctx, req.UserID, history.ID)
		if err != nil {
			common.LogError(ctx, err, "Failed to start classification", common.Fields{"file_id": history.ID})
		} else {
			result.Job = job
		}
	}
	return result, nil
}

func (s *Service) parse(ctx context.Context, body io.Reader, ft config.FileType) (*parsedRows, error) {
	if ft.Format == config.FormatOFX {
		parsed, err := ofx.NewParser(ft.DefaultCurrency).Parse(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		return &parsedRows{expenses: parsed.Expenses}, nil
	}
	return parseCSV(body, ft)
}

func (s *Service) finish(ctx context.Context, id int64, status model.UploadStatus, message string) {
	if err := s.uploads.UpdateUploadStatus(context.WithoutCancel(ctx), id, status, message); err != nil {
		common.LogError(ctx, err, "Failed to update upload history", common.Fields{"upload_id": id})
	}
	observability.ObserveUpload(string(status))
}

// History returns the user's most recent uploads.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]model.UploadHistory, error) {
	return s.uploads.ListUploads(ctx, userID, limit)
}
