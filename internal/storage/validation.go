// Package storage provides the data persistence layer for the spice application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidExpense = errors.New("invalid expense")
	ErrInvalidJob     = errors.New("invalid classification job")
	ErrInvalidStatus  = errors.New("invalid status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrEmptyString, paramName)
	}
	return nil
}

func validateExpense(e *model.Expense) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidExpense)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidExpense)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidExpense)
	}
	return nil
}

func validateUploadStatus(status model.UploadStatus) error {
	switch status {
	case model.UploadPending, model.UploadProcessing, model.UploadSuccess, model.UploadFailed:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
}

func validateJob(job *model.ClassificationJob) error {
	if job == nil {
		return fmt.Errorf("%w: job", ErrNilParameter)
	}
	if job.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	}
	if job.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidJob)
	}
	switch job.Status {
	case model.JobQueued, model.JobRunning, model.JobDone, model.JobFailed:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, job.Status)
	}
}
