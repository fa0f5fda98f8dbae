package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/spice-insights/internal/chat"
	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/service"
	"github.com/Veraticus/spice-insights/internal/upload"
)

// Asker answers natural-language questions.
type Asker interface {
	Ask(ctx context.Context, question, userID string) (*chat.Answer, error)
}

// JobQueue accepts and reports classification jobs.
type JobQueue interface {
	Submit(ctx context.Context, userID string, fileID int64) (*model.ClassificationJob, error)
	Get(ctx context.Context, id string) (*model.ClassificationJob, error)
	List(ctx context.Context, userID string, limit int) ([]model.ClassificationJob, error)
}

// Uploader ingests expense files.
type Uploader interface {
	Upload(ctx context.Context, req upload.Request) (*upload.Result, error)
	History(ctx context.Context, userID string, limit int) ([]model.UploadHistory, error)
}

const (
	statusSuccess = "success"
	statusError   = "error"

	msgInvalidInput = "Invalid input"
	msgInternal     = "Internal server error"
)

// Handler holds the HTTP handlers.
type Handler struct {
	chat      Asker
	jobs      JobQueue
	uploads   Uploader
	expenses  service.ExpenseStorage
	ping      func(ctx context.Context) error
	logger    *slog.Logger
	version   string
	maxUpload int64
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps, maxUpload int64) *Handler {
	return &Handler{
		chat:      deps.Chat,
		jobs:      deps.Jobs,
		uploads:   deps.Uploads,
		expenses:  deps.Expenses,
		ping:      deps.Ping,
		logger:    deps.Logger,
		version:   deps.Version,
		maxUpload: maxUpload,
	}
}

// Health reports liveness and storage reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// ChatRequest is the body of POST /chatbot.
type ChatRequest struct {
	Question string `json:"question"`
}

// Chat answers a question about the caller's data.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput)
		return
	}

	answer, err := h.chat.Ask(r.Context(), req.Question, user.Email)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, chat.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, common.ErrNotFound):
			status = http.StatusNotFound
		}
		h.fail(w, r, status, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": statusSuccess,
		"answer": answer,
	})
}

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	UserID string `json:"user_id"`
	FileID int64  `json:"file_id"`
}

// Classify queues classification of an uploaded file.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and file_id are required")
		return
	}
	if req.UserID == "" {
		req.UserID = user.Email
	}
	if req.UserID != user.Email {
		writeError(w, http.StatusForbidden, "Cannot classify another user's file")
		return
	}

	job, err := h.jobs.Submit(r.Context(), req.UserID, req.FileID)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  statusSuccess,
		"message": "Processing started",
		"job_id":  job.ID,
	})
}

// GetJob returns one of the caller's jobs.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	if job.UserID != user.Email {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns the caller's recent jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	jobs, err := h.jobs.List(r.Context(), user.Email, queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	if jobs == nil {
		jobs = []model.ClassificationJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// Upload ingests a multipart expense file.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	fileType := r.FormValue("file_name")
	if strings.TrimSpace(fileType) == "" {
		writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}

	result, err := h.uploads.Upload(r.Context(), upload.Request{
		Body:     file,
		UserID:   user.Email,
		FileName: header.Filename,
		FileType: fileType,
	})
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  statusSuccess,
		"message": upload.MsgSuccess,
		"result":  result,
	})
}

// History lists the caller's uploads.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	history, err := h.uploads.History(r.Context(), user.Email, queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	if history == nil {
		history = []model.UploadHistory{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ListExpenses lists the caller's expenses, optionally filtered by category.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	expenses, err := h.expenses.ListExpenses(r.Context(), service.ExpenseFilter{
		UserID:   user.Email,
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

// UpdateExpenseRequest is the body of PATCH /expenses/{id}.
type UpdateExpenseRequest struct {
	Category string `json:"category"`
}

// UpdateExpense overrides the category of one expense.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expense id")
		return
	}
	var req UpdateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Category) == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	if err := h.expenses.UpdateExpenseCategory(r.Context(), user.Email, id, strings.TrimSpace(req.Category)); err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": statusSuccess})
}

// fail logs err and writes the error envelope. Only user-facing messages reach the body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	message := msgInternal
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		message = userErr.UserMessage
	} else if status != http.StatusInternalServerError {
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.WarnContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrJobInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"status":  statusError,
		"message": message,
	})
}
