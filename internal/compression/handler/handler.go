package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/internal/compression/engine"
	"github.com/shrinkray/compression-backend/internal/compression/filetype"
	"github.com/shrinkray/compression-backend/internal/compression/repository"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/httputil"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

// Handler handles HTTP requests for the compression pipeline
type Handler struct {
	engine        *engine.Engine
	history       *repository.HistoryRepository
	maxUploadSize int64
	log           *logger.Logger
}

// NewHandler creates a new compression handler. history may be nil when no
// database is configured.
func NewHandler(eng *engine.Engine, history *repository.HistoryRepository, maxUploadSize int64, log *logger.Logger) *Handler {
	return &Handler{
		engine:        eng,
		history:       history,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// Routes mounts the compression endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/compress", h.Compress)
	r.Get("/jobs/{jobID}", h.GetJob)
	r.Post("/jobs/{jobID}/cancel", h.CancelJob)
	r.Get("/jobs/{jobID}/files/{index}", h.DownloadFile)
	r.Get("/jobs/{jobID}/combined", h.DownloadCombined)
	r.Get("/formats", h.Formats)
	r.Post("/analyze", h.Analyze)
	r.Get("/history", h.History)
	r.Get("/history/stats", h.HistoryStats)
}

// Compress handles POST /compress
// Accepts a multipart form with one or more "files" parts and an optional
// "options" part holding a JSON BatchOptions document. Returns 202 with
// the job to poll.
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		httputil.Error(w, errors.BadRequest("file too large or invalid multipart form"))
		return
	}

	opts := domain.DefaultBatchOptions()
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			httputil.Error(w, errors.BadRequest("invalid options: "+err.Error()))
			return
		}
	}
	if err := httputil.Validate(&opts.Options); err != nil {
		httputil.Error(w, err)
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		httputil.Error(w, errors.BadRequest("no files in request"))
		return
	}

	files := make([]domain.SourceFile, 0, len(r.MultipartForm.File["files"]))
	for _, header := range r.MultipartForm.File["files"] {
		part, err := header.Open()
		if err != nil {
			httputil.Error(w, errors.BadRequest("unreadable file part: "+header.Filename))
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			httputil.Error(w, errors.Internal("failed to read uploaded file"))
			return
		}
		files = append(files, domain.NewSourceFile(header.Filename, header.Header.Get("Content-Type"), data))
	}

	job, err := h.engine.StartBatch(files, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.log.Info().
		Str("job_id", job.ID).
		Int("files", len(files)).
		Str("user_id", httputil.GetUserID(r.Context())).
		Msg("compression batch accepted")
	httputil.JSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /jobs/{jobID}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.engine.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, job)
}

// CancelJob handles POST /jobs/{jobID}/cancel
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.engine.CancelJob(jobID); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "cancelling"})
}

// DownloadFile handles GET /jobs/{jobID}/files/{index}
// Streams one compressed output with a compressed_ download name
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	job, err := h.engine.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(job.Results) {
		httputil.Error(w, errors.BadRequest("invalid file index"))
		return
	}

	result := job.Results[index]
	if !result.Success || result.Compressed == nil {
		httputil.Error(w, errors.NotFound("compressed file"))
		return
	}

	serveFile(w, "compressed_"+result.Compressed.Name, result.Compressed)
}

// DownloadCombined handles GET /jobs/{jobID}/combined
func (h *Handler) DownloadCombined(w http.ResponseWriter, r *http.Request) {
	job, err := h.engine.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if job.Combined == nil {
		httputil.Error(w, errors.NotFound("combined document"))
		return
	}

	serveFile(w, job.Combined.Name, job.Combined)
}

func serveFile(w http.ResponseWriter, name string, file *domain.SourceFile) {
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Write(file.Data)
}

// Formats handles GET /formats
// Lists the supported categories with their extensions and content types
func (h *Handler) Formats(w http.ResponseWriter, _ *http.Request) {
	type categoryFormats struct {
		Category     domain.FileCategory `json:"category"`
		Extensions   []string            `json:"extensions"`
		ContentTypes []string            `json:"content_types"`
	}

	formats := make([]categoryFormats, 0, len(domain.AllCategories()))
	for _, category := range domain.AllCategories() {
		formats = append(formats, categoryFormats{
			Category:     category,
			Extensions:   filetype.Extensions(category),
			ContentTypes: filetype.ContentTypes(category),
		})
	}
	httputil.JSON(w, http.StatusOK, formats)
}

// Analyze handles POST /analyze
// Inspects a single uploaded file and returns metadata plus
// compression recommendations without compressing it
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		httputil.Error(w, errors.BadRequest("file too large or invalid multipart form"))
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, errors.BadRequest("missing file in request"))
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		httputil.Error(w, errors.Internal("failed to read uploaded file"))
		return
	}

	file := domain.NewSourceFile(header.Filename, header.Header.Get("Content-Type"), data)
	httputil.JSON(w, http.StatusOK, h.engine.Analyze(file))
}

// History handles GET /history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.Error(w, errors.NotConfigured("compression history"))
		return
	}

	filter := &repository.HistoryFilter{
		JobID:    r.URL.Query().Get("job_id"),
		Category: domain.FileCategory(r.URL.Query().Get("category")),
	}
	if raw := r.URL.Query().Get("success"); raw != "" {
		success := raw == "true"
		filter.Success = &success
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)

	entries, total, err := h.history.List(r.Context(), filter, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list compression history")
		httputil.Error(w, errors.Internal("failed to list compression history"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"entries":  entries,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// HistoryStats handles GET /history/stats
func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.Error(w, errors.NotConfigured("compression history"))
		return
	}

	stats, err := h.history.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load compression stats")
		httputil.Error(w, errors.Internal("failed to load compression stats"))
		return
	}
	httputil.JSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, name string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
