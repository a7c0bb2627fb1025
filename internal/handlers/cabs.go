package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/cabtrips/internal/middleware"
	"github.com/ukydev/cabtrips/internal/models"
)

const maxImageBytes = 5 << 20

// FleetBackend is the part of the backend behind cab management and driver
// verification.
type FleetBackend interface {
	UpdateCab(ctx context.Context, token, cabID string, update models.CabUpdate) (*models.Cab, error)
	UploadCabImage(ctx context.Context, token, cabID, filename string, image io.Reader) (*models.Cab, error)
	DeleteCabImage(ctx context.Context, token, cabID, name string) error
	PendingVerifications(ctx context.Context, token string) ([]models.Verification, error)
	Verify(ctx context.Context, token, id string, approve bool, note string) (*models.Verification, error)
}

// FleetHandler passes cab and verification requests through to the backend
// with the caller's token.
type FleetHandler struct {
	backend FleetBackend
}

// NewFleetHandler returns a pass-through handler.
func NewFleetHandler(backend FleetBackend) *FleetHandler {
	return &FleetHandler{backend: backend}
}

func token(w http.ResponseWriter, r *http.Request) (string, bool) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Session not found", http.StatusUnauthorized)
		return "", false
	}
	return s.Token, true
}

// UpdateCab edits the caller's cab.
func (h *FleetHandler) UpdateCab(w http.ResponseWriter, r *http.Request) {
	tok, ok := token(w, r)
	if !ok {
		return
	}
	var u models.CabUpdate
	if err := decodeJSON(r, &u); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := u.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	cab, err := h.backend.UpdateCab(r.Context(), tok, chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cab)
}

// UploadImage forwards a multipart "image" file.
func (h *FleetHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	tok, ok := token(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "image file is required")
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		writeError(w, r, models.ValidationErrors{"image": "image must be jpg, png or webp"})
		return
	}
	cab, err := h.backend.UploadCabImage(r.Context(), tok, chi.URLParam(r, "id"), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cab)
}

// DeleteImage removes one cab image.
func (h *FleetHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	tok, ok := token(w, r)
	if !ok {
		return
	}
	if err := h.backend.DeleteCabImage(r.Context(), tok, chi.URLParam(r, "id"), chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PendingVerifications lists drivers awaiting review.
func (h *FleetHandler) PendingVerifications(w http.ResponseWriter, r *http.Request) {
	tok, ok := token(w, r)
	if !ok {
		return
	}
	pending, err := h.backend.PendingVerifications(r.Context(), tok)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// ReviewRequest carries an optional note with a decision.
type ReviewRequest struct {
	Note string `json:"note"`
}

// Review approves or rejects a driver.
func (h *FleetHandler) Review(w http.ResponseWriter, r *http.Request) {
	tok, ok := token(w, r)
	if !ok {
		return
	}
	var approve bool
	switch chi.URLParam(r, "decision") {
	case "approve":
		approve = true
	case "reject":
	default:
		badRequest(w, "decision must be approve or reject")
		return
	}
	var req ReviewRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	if !approve && strings.TrimSpace(req.Note) == "" {
		writeError(w, r, models.ValidationErrors{"note": "a note is required when rejecting"})
		return
	}
	v, err := h.backend.Verify(r.Context(), tok, chi.URLParam(r, "id"), approve, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
