package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/cache"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Claims are the signed contents of a session token.
type Claims struct {
	UserID   uint   `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db        *gorm.DB
	blacklist *cache.Blacklist
	store     *cache.QuizStore
	reader    *QuizReader
	jwtSecret []byte
	tokenTTL  time.Duration
	log       *logrus.Entry

	bypassToken    string
	bypassIdentity Identity
}

func NewAuthService(db *gorm.DB, blacklist *cache.Blacklist, store *cache.QuizStore, reader *QuizReader,
	jwtSecret string, tokenTTL time.Duration, log *logrus.Entry) *AuthService {
	return &AuthService{
		db:        db,
		blacklist: blacklist,
		store:     store,
		reader:    reader,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log.WithField("component", "auth"),
	}
}

// EnableBypass accepts token as the given user without signature checks.
// Only for local development; an empty token or nil user leaves it disabled.
func (s *AuthService) EnableBypass(token string, user *models.User) {
	if token == "" || user == nil {
		return
	}
	s.bypassToken = token
	s.bypassIdentity = Identity{UserID: user.ID, Email: user.Email, Username: user.Username}
	s.log.WithField("user_id", user.ID).Warn("development bypass token enabled")
}

type LoginParams struct {
	Email    string
	Username string
	Password string
}

func (s *AuthService) Signup(ctx context.Context, email, username, password string) error {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	if email == "" || username == "" || password == "" {
		return apperr.Validation("Email, username, and password are required")
	}
	if !emailPattern.MatchString(email) {
		return apperr.Validation("Invalid email format")
	}
	if len(password) < minPasswordLength {
		return apperr.Validation("Password must be at least 8 characters")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return apperr.Internal("Failed to check email", err)
	}
	if count > 0 {
		return apperr.Conflict("Email already exists")
	}
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return apperr.Internal("Failed to check username", err)
	}
	if count > 0 {
		return apperr.Conflict("Username already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Internal("Failed to hash password", err)
	}

	user := models.User{Email: email, Username: username, PasswordHash: string(hash)}
	if err := s.createUser(db, &user); err != nil {
		return err
	}

	s.log.WithField("user_id", user.ID).Info("user signed up")
	return nil
}

// createUser inserts the user. A unique violation from a concurrent signup is
// reported as the same conflict the pre-insert checks return.
func (s *AuthService) createUser(db *gorm.DB, user *models.User) error {
	err := db.Create(user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Internal("Failed to create user", err)
	}

	var count int64
	if db.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error == nil && count > 0 {
		return apperr.Conflict("Email already exists")
	}
	return apperr.Conflict("Username already exists")
}

// Login verifies credentials, issues a token and warms the user's quiz cache.
func (s *AuthService) Login(ctx context.Context, p LoginParams) (string, error) {
	email := strings.TrimSpace(p.Email)
	username := strings.TrimSpace(p.Username)

	if p.Password == "" || (email == "" && username == "") {
		return "", apperr.Validation("Password and either email or username are required")
	}
	if email != "" && !emailPattern.MatchString(email) {
		return "", apperr.Validation("Invalid email format")
	}

	db := s.db.WithContext(ctx)
	var user models.User
	var err error
	switch {
	case email != "" && username != "":
		err = db.Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && user.Username != username) {
			return "", apperr.Unauthorized("Email and username do not match")
		}
	case email != "":
		err = db.Where("email = ?", email).First(&user).Error
	default:
		err = db.Where("username = ?", username).First(&user).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return "", apperr.Internal("Failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(p.Password)); err != nil {
		return "", apperr.Unauthorized("Invalid credentials")
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", apperr.Internal("Failed to issue token", err)
	}

	if _, err := s.reader.Warm(ctx, user.ID); err != nil {
		s.log.WithField("user_id", user.ID).WithError(err).Warn("failed to warm quiz cache on login")
	}

	return token, nil
}

func (s *AuthService) GenerateToken(user models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ParseToken checks the signature and expiry.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == 0 {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

// Authenticate resolves a raw token to the caller's identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.Unauthorized("No token provided")
	}
	if s.bypassToken != "" && token == s.bypassToken {
		return s.bypassIdentity, nil
	}

	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return Identity{}, apperr.Unavailable("Authentication temporarily unavailable", err)
	}
	if revoked {
		return Identity{}, apperr.Forbidden("Token has been invalidated. Please login again.")
	}

	claims, err := s.ParseToken(token)
	if err != nil {
		return Identity{}, apperr.Unauthorized("Invalid token")
	}
	return Identity{UserID: claims.UserID, Email: claims.Email, Username: claims.Username}, nil
}

// Logout revokes token until its natural expiry and drops the user's cached data.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apperr.Unauthorized("No token provided")
	}

	claims, err := s.ParseToken(token)
	if err != nil {
		return apperr.Unauthorized("Invalid or expired token")
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.blacklist.Revoke(ctx, token, ttl); err != nil {
		return apperr.Internal("Failed to invalidate token", err)
	}

	if err := s.store.Forget(ctx, claims.UserID); err != nil {
		s.log.WithField("user_id", claims.UserID).WithError(err).Warn("failed to clear user cache on logout")
	}
	return nil
}
