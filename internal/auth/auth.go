package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/cabtrips/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
)

const DefaultExpiry = 24 * time.Hour

var phonePattern = regexp.MustCompile(`^(\+91)?[6-9][0-9]{9}$`)

// Service issues and checks tokens and passwords.
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	now       func() time.Time
}

// NewService creates an authentication service signing with secret.
// A non-positive expiry means DefaultExpiry.
func NewService(secret string, expiry time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Service{
		jwtSecret: []byte(secret),
		tokenExp:  expiry,
		now:       time.Now,
	}, nil
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func (s *Service) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken signs a token carrying the user's id, username and role.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":  user.ID.Hex(),
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      now.Add(s.tokenExp).Unix(),
		"iat":      now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// GenerateRefreshToken generates a refresh token
func (s *Service) GenerateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	exp, err := claims.GetExpirationTime()
	if userID == "" || username == "" || !models.IsValidRole(models.Role(role)) || err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		UserID:   userID,
		Username: username,
		Role:     models.Role(role),
		Exp:      exp.Unix(),
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	return ExtractBearer(authHeader)
}

// ExtractBearer returns the token of a "Bearer <token>" header value.
func ExtractBearer(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// ValidatePassword validates password strength
func (s *Service) ValidatePassword(password string) error {
	return validatePassword(password)
}

// ValidateEmail validates email format
func (s *Service) ValidateEmail(email string) error {
	return validateEmail(email)
}

// ValidateUsername validates username format
func (s *Service) ValidateUsername(username string) error {
	return validateUsername(username)
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") || strings.HasSuffix(email, ".") {
		return errors.New("invalid email format")
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters long")
	}
	if len(username) > 50 {
		return errors.New("username must be less than 50 characters")
	}
	return nil
}

func validatePhone(phone string) error {
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if !phonePattern.MatchString(phone) {
		return errors.New("phone must be a 10 digit mobile number")
	}
	return nil
}

// ValidateLogin checks a login form and reports every bad field.
func ValidateLogin(req models.LoginRequest) error {
	errs := models.ValidationErrors{}
	if strings.TrimSpace(req.Username) == "" {
		errs.Add("username", "username is required")
	}
	if req.Password == "" {
		errs.Add("password", "password is required")
	}
	return errs.Err()
}

// ValidateRegistration checks a registration form and reports every bad
// field. Admins cannot be registered through the public form.
func ValidateRegistration(req models.RegisterRequest) error {
	errs := models.ValidationErrors{}
	if err := validateUsername(strings.TrimSpace(req.Username)); err != nil {
		errs.Add("username", err.Error())
	}
	if err := validateEmail(req.Email); err != nil {
		errs.Add("email", err.Error())
	}
	if err := validatePassword(req.Password); err != nil {
		errs.Add("password", err.Error())
	}
	if strings.TrimSpace(req.FirstName) == "" {
		errs.Add("first_name", "first name is required")
	}
	if req.Phone != "" {
		if err := validatePhone(req.Phone); err != nil {
			errs.Add("phone", err.Error())
		}
	}
	switch req.Role {
	case models.RoleDriver, models.RoleCustomer:
	case "":
		errs.Add("role", "role is required")
	default:
		errs.Add("role", "role must be driver or customer")
	}
	return errs.Err()
}
