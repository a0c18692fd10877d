package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

type identityRepository interface {
	FindByIdentity(ctx context.Context, encEmail, encStudentID string) (*models.Student, error)
}

// LoginRequest is the identity-confirmation payload.
type LoginRequest struct {
	Email     string `json:"email" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
}

// LoginResponse returns the matched record plus a short-lived session token.
type LoginResponse struct {
	Student   models.StudentRecord `json:"student"`
	Token     string               `json:"token,omitempty"`
	ExpiresIn int64                `json:"expiresIn,omitempty"`
}

// SessionConfig configures the token issued on successful login.
type SessionConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// LoginService confirms a student's identity by deterministic-ciphertext
// equality: both supplied plaintexts are encrypted and matched against the
// stored ciphertext columns, so no row is ever decrypted during the lookup.
type LoginService struct {
	repo      identityRepository
	cipher    fieldCipher
	validator *validator.Validate
	logger    *zap.Logger
	session   SessionConfig
}

// NewLoginService constructs the login service.
func NewLoginService(repo identityRepository, cipher fieldCipher, validate *validator.Validate, logger *zap.Logger, session SessionConfig) *LoginService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if session.TokenTTL <= 0 {
		session.TokenTTL = time.Hour
	}
	return &LoginService{repo: repo, cipher: cipher, validator: validate, logger: logger, session: session}
}

// Login encrypts both identity fields and looks up the matching row. The
// failure message is identical whichever field was wrong, so a caller cannot
// probe which part of the pair exists.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and student ID are required")
	}

	encEmail := s.cipher.Encrypt(req.Email)
	encStudentID := s.cipher.Encrypt(req.StudentID)

	student, err := s.repo.FindByIdentity(ctx, encEmail, encStudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidIdentity
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to look up identity")
	}

	record := student.Record()
	record.Name = s.decryptField(student.ID, "name", student.Name)
	record.StudentID = s.decryptField(student.ID, "student_id", student.StudentID)
	record.Email = s.decryptField(student.ID, "email", student.Email)

	resp := &LoginResponse{Student: record}
	if s.session.TokenSecret != "" {
		token, err := s.issueToken(student.ID)
		if err != nil {
			// The identity check already succeeded; a token failure should
			// not turn a valid login into an error.
			s.logger.Warn("failed to issue session token", zap.Error(err))
		} else {
			resp.Token = token
			resp.ExpiresIn = int64(s.session.TokenTTL.Seconds())
		}
	}

	s.logger.Info("student login", zap.String("id", student.ID))
	return resp, nil
}

func (s *LoginService) issueToken(studentID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   studentID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.session.TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.session.TokenSecret))
}

func (s *LoginService) decryptField(id, field, value string) string {
	plaintext, ok := s.cipher.Decrypt(value)
	if !ok {
		s.logger.Warn("identity field decrypt failed, returning raw value",
			zap.String("id", id), zap.String("field", field))
	}
	return plaintext
}
