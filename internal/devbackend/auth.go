package devbackend

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/auth"
	"github.com/ukydev/cabtrips/internal/db"
	"github.com/ukydev/cabtrips/internal/models"
)

// Login handles user login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(r, &loginReq); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	loginReq.Username = strings.TrimSpace(loginReq.Username)
	if err := auth.ValidateLogin(loginReq); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.writeError(w, r, err)
			return
		}
		httpError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsActive {
		httpError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}
	if !s.auth.CheckPassword(loginReq.Password, user.PasswordHash) {
		httpError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := s.users.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}
	s.issue(w, r, user, http.StatusOK)
}

// Register handles user registration. Drivers also get a cab record and a
// pending verification.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := auth.ValidateRegistration(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.users.FindUserByUsername(r.Context(), req.Username); err == nil {
		httpError(w, http.StatusConflict, "Username already exists")
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}

	passwordHash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.InsertUser(r.Context(), models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			httpError(w, http.StatusConflict, "Username or email already exists")
			return
		}
		s.writeError(w, r, err)
		return
	}

	if user.Role == models.RoleDriver {
		s.onboardDriver(r, user)
	}
	s.logger.WithFields(log.Fields{
		"user_id": user.ID.Hex(),
		"role":    user.Role,
	}).Info("User registered")
	s.issue(w, r, user, http.StatusCreated)
}

func (s *Server) onboardDriver(r *http.Request, user *models.User) {
	ctx := r.Context()
	driverID := user.ID.Hex()
	if _, err := s.cabs.InsertCab(ctx, models.Cab{DriverID: driverID, CarType: "sedan", Status: "inactive"}); err != nil {
		s.logger.WithError(err).WithField("driver_id", driverID).Warn("Failed to create cab")
	}
	if _, err := s.verifications.InsertVerification(ctx, models.Verification{
		DriverID:   driverID,
		DriverName: user.FullName(),
		State:      models.VerificationPending,
	}); err != nil {
		s.logger.WithError(err).WithField("driver_id", driverID).Warn("Failed to queue verification")
	}
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, err := s.auth.GenerateToken(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	refreshToken, err := s.auth.GenerateRefreshToken()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}
