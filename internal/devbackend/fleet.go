package devbackend

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/models"
)

const maxImageBytes = 5 << 20

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// ownCab loads the cab in the URL and checks the caller drives it.
func (s *Server) ownCab(w http.ResponseWriter, r *http.Request) (*models.Cab, bool) {
	cab, err := s.cabs.FindCabByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if c := claimsFrom(r); c.Role != models.RoleAdmin && cab.DriverID != c.UserID {
		s.writeError(w, r, errForbidden)
		return nil, false
	}
	return cab, true
}

// UpdateCab edits the caller's cab.
func (s *Server) UpdateCab(w http.ResponseWriter, r *http.Request) {
	var u models.CabUpdate
	if err := decodeJSON(r, &u); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := u.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	cab, ok := s.ownCab(w, r)
	if !ok {
		return
	}
	updated, err := s.cabs.UpdateCab(r.Context(), cab.ID.Hex(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UploadImage stores a multipart "image" under a fresh name.
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	cab, ok := s.ownCab(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		httpError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !imageExts[ext] {
		s.writeError(w, r, models.ValidationErrors{"image": "image must be jpg, png or webp"})
		return
	}
	name := uuid.NewString() + ext
	if err := s.saveImage(name, file); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.cabs.AddImage(r.Context(), cab.ID.Hex(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.WithFields(log.Fields{
		"cab_id": cab.ID.Hex(),
		"image":  name,
	}).Info("Cab image uploaded")
	writeJSON(w, http.StatusCreated, updated)
}

func (s *Server) saveImage(name string, src io.Reader) error {
	if s.imageDir == "" {
		_, err := io.Copy(io.Discard, src)
		return err
	}
	if err := os.MkdirAll(s.imageDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(s.imageDir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// DeleteImage removes one image of the caller's cab.
func (s *Server) DeleteImage(w http.ResponseWriter, r *http.Request) {
	cab, ok := s.ownCab(w, r)
	if !ok {
		return
	}
	name := filepath.Base(chi.URLParam(r, "name"))
	if _, err := s.cabs.RemoveImage(r.Context(), cab.ID.Hex(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.imageDir != "" {
		if err := os.Remove(filepath.Join(s.imageDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).WithField("image", name).Warn("Failed to delete image file")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// PendingVerifications lists drivers awaiting review.
func (s *Server) PendingVerifications(w http.ResponseWriter, r *http.Request) {
	pending, err := s.verifications.FindPending(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if pending == nil {
		pending = []models.Verification{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// ReviewRequest approves or rejects a driver.
type ReviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// ReviewVerification records an admin decision and marks the driver
// verified when approved.
func (s *Server) ReviewVerification(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	state := models.VerificationRejected
	if req.Approve {
		state = models.VerificationApproved
	}
	v, err := s.verifications.Review(r.Context(), chi.URLParam(r, "id"), state, req.Note, claimsFrom(r).Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.SetVerified(r.Context(), v.DriverID, req.Approve); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.WithFields(log.Fields{
		"driver_id": v.DriverID,
		"state":     v.State,
	}).Info("Driver verification reviewed")
	writeJSON(w, http.StatusOK, v)
}
