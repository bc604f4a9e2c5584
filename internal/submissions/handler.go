package submissions

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/images"
	"github.com/verimarket/backend/internal/middleware"
	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/response"
)

// ImageSigner issues presigned object URLs. Nil when S3 is not configured.
type ImageSigner interface {
	PresignUpload(ctx context.Context, jobID uuid.UUID, contentType string) (*images.Upload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type SubmitRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

type VerifyRequest struct {
	Approved bool   `json:"approved"`
	Comments string `json:"comments"`
}

type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// SubmissionResponse adds short-lived download URLs for the stored image keys.
type SubmissionResponse struct {
	*models.Submission
	ImageURLs map[string]string `json:"image_urls,omitempty"`
}

type Handler struct {
	svc    Service
	signer ImageSigner
	log    *slog.Logger
}

func NewHandler(svc Service, signer ImageSigner, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, signer: signer, log: log}
}

// POST /api/v1/jobs/{jobID}/submissions
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	jobID, ok := pathID(w, r, "jobID")
	if !ok {
		return
	}
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	sub, err := h.svc.Submit(r.Context(), jobID, p.AccountID, SubmitInput(req))
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.Created(w, sub)
}

// GET /api/v1/jobs/{jobID}/submissions
func (h *Handler) ListByJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r, "jobID")
	if !ok {
		return
	}
	list, err := h.svc.ListByJob(r.Context(), jobID)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, list)
}

// GET /api/v1/submissions/{submissionID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "submissionID")
	if !ok {
		return
	}
	sub, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	out := SubmissionResponse{Submission: sub}
	if h.signer != nil && len(sub.Images) > 0 {
		out.ImageURLs = make(map[string]string, len(sub.Images))
		for _, key := range sub.Images {
			url, err := h.signer.PresignDownload(r.Context(), key)
			if err != nil {
				h.log.Warn("presign download failed", "submission_id", id, "key", key, "error", err)
				continue
			}
			out.ImageURLs[key] = url
		}
	}
	response.JSON(w, out)
}

// PUT /api/v1/submissions/{submissionID}/verification
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	id, ok := pathID(w, r, "submissionID")
	if !ok {
		return
	}
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	res, err := h.svc.Verify(r.Context(), id, p.AccountID, VerifyInput(req))
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, res)
}

// POST /api/v1/jobs/{jobID}/uploads
func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	if h.signer == nil {
		response.Error(w, http.StatusServiceUnavailable, "UPLOADS_DISABLED", "image uploads are not configured", nil)
		return
	}
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	jobID, ok := pathID(w, r, "jobID")
	if !ok {
		return
	}
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	if err := h.svc.CheckSubmitter(r.Context(), jobID, p.AccountID); err != nil {
		response.FromError(w, h.log, err)
		return
	}
	up, err := h.signer.PresignUpload(r.Context(), jobID, req.ContentType)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.Created(w, up)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ID", param+" must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
