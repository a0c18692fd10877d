package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/media"
	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/repository"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/jobs"
)

const (
	listCacheKey = "students:list"

	// JobKindDestroyAsset asks the cleanup queue to remove an orphaned
	// media asset. Payload is the asset id.
	JobKindDestroyAsset = "media.destroy"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
	Delete(ctx context.Context, id string) error
}

type fieldCipher interface {
	Encrypt(plaintext string) string
	Decrypt(ciphertext string) (string, bool)
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cleanupQueue interface {
	Enqueue(job jobs.Job) error
}

// CreateStudentRequest holds the multipart form fields for creating students.
// Year stays a string until validation because the form supplies it as text.
type CreateStudentRequest struct {
	Name      string
	StudentID string
	Email     string
	Course    string
	Year      string
}

// UpdateStudentRequest carries a partial update; nil means "not supplied".
type UpdateStudentRequest struct {
	Name      *string
	StudentID *string
	Email     *string
	Course    *string
	Year      *string
	Image     *string
}

// StudentServiceConfig tunes optional behaviour.
type StudentServiceConfig struct {
	ListCacheTTL   time.Duration
	MaxUploadBytes int64
}

// StudentService implements the record store gateway: it encrypts identity
// fields on the way in, decrypts them on the way out, and maps datastore
// failures to the domain error taxonomy.
type StudentService struct {
	repo     studentRepository
	cipher   fieldCipher
	uploader media.Uploader
	cache    listCache
	cleanup  cleanupQueue
	metrics  *MetricsService
	logger   *zap.Logger
	config   StudentServiceConfig
}

// NewStudentService constructs the student service. cache, cleanup and
// metrics may be nil; the corresponding behaviour degrades gracefully.
func NewStudentService(repo studentRepository, cipher fieldCipher, uploader media.Uploader, cache listCache, cleanup cleanupQueue, metrics *MetricsService, logger *zap.Logger, cfg StudentServiceConfig) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListCacheTTL <= 0 {
		cfg.ListCacheTTL = time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 * 1024 * 1024
	}
	return &StudentService{
		repo:     repo,
		cipher:   cipher,
		uploader: uploader,
		cache:    cache,
		cleanup:  cleanup,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}
}

// Create validates the form, uploads the image, encrypts identity fields and
// persists the row. The created record comes back with identity fields
// decrypted for immediate display.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, upload *media.Upload) (*models.StudentRecord, error) {
	missing := []string{}
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "Name")
	}
	if strings.TrimSpace(req.StudentID) == "" {
		missing = append(missing, "Student ID")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "Email")
	}
	if strings.TrimSpace(req.Course) == "" {
		missing = append(missing, "Course")
	}
	if strings.TrimSpace(req.Year) == "" {
		missing = append(missing, "Year")
	}
	if len(missing) > 0 {
		msg := "missing required fields: " + strings.Join(missing, ", ")
		return nil, appErrors.WithFields(appErrors.ErrValidation, msg, missing)
	}

	year, err := strconv.Atoi(strings.TrimSpace(req.Year))
	if err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "year must be numeric", []string{"Year"})
	}

	if upload == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no image uploaded")
	}
	if err := s.checkUpload(upload); err != nil {
		return nil, err
	}

	asset, err := s.uploader.Upload(ctx, *upload)
	if s.metrics != nil {
		s.metrics.ObserveUpload(err == nil)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "image upload failed")
	}

	student := &models.Student{
		Name:         s.cipher.Encrypt(req.Name),
		StudentID:    s.cipher.Encrypt(req.StudentID),
		Email:        s.cipher.Encrypt(req.Email),
		Course:       req.Course,
		Year:         year,
		Image:        asset.URL,
		MediaAssetID: asset.AssetID,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		// The asset is already on the media host; don't leave it orphaned.
		s.enqueueDestroy(asset.AssetID)
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.ErrConflict
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to create student")
	}

	s.invalidateList(ctx)
	record := s.decrypt(*student)
	s.logger.Info("student added", zap.String("id", record.ID))
	return &record, nil
}

// Update applies a partial field replacement. Only supplied fields change;
// updated_at always refreshes. Supplied identity fields are re-encrypted.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentRecord, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load student")
	}

	patch := models.StudentPatch{Course: req.Course, Image: req.Image}
	if req.Name != nil {
		enc := s.cipher.Encrypt(*req.Name)
		patch.Name = &enc
	}
	if req.StudentID != nil {
		enc := s.cipher.Encrypt(*req.StudentID)
		patch.StudentID = &enc
	}
	if req.Email != nil {
		enc := s.cipher.Encrypt(*req.Email)
		patch.Email = &enc
	}
	if req.Year != nil {
		year, convErr := strconv.Atoi(strings.TrimSpace(*req.Year))
		if convErr != nil {
			return nil, appErrors.WithFields(appErrors.ErrValidation, "year must be numeric", []string{"Year"})
		}
		patch.Year = &year
	}

	replacedAsset := ""
	if req.Image != nil && *req.Image != current.Image && current.MediaAssetID != "" {
		// The stored asset no longer backs the record once the URL changes.
		replacedAsset = current.MediaAssetID
		cleared := ""
		patch.MediaAssetID = &cleared
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.ErrConflict
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to update student")
	}

	if replacedAsset != "" {
		s.enqueueDestroy(replacedAsset)
	}
	s.invalidateList(ctx)
	record := s.decrypt(*updated)
	s.logger.Info("student updated", zap.String("id", record.ID))
	return &record, nil
}

// Delete removes the record permanently and schedules media cleanup.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load student")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to delete student")
	}

	if current.MediaAssetID != "" {
		s.enqueueDestroy(current.MediaAssetID)
	}
	s.invalidateList(ctx)
	s.logger.Info("student deleted", zap.String("id", id))
	return nil
}

// List returns every record, identity fields decrypted, newest first.
func (s *StudentService) List(ctx context.Context) ([]models.StudentRecord, error) {
	if s.cache != nil {
		cached := []models.StudentRecord{}
		if err := s.cache.Get(ctx, listCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list students")
	}

	records := make([]models.StudentRecord, 0, len(students))
	for _, student := range students {
		records = append(records, s.decrypt(student))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, listCacheKey, records, s.config.ListCacheTTL); err != nil {
			s.logger.Warn("failed to cache student list", zap.Error(err))
		}
	}
	return records, nil
}

// Get returns a single record with identity fields decrypted.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentRecord, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load student")
	}
	record := s.decrypt(*student)
	return &record, nil
}

func (s *StudentService) checkUpload(upload *media.Upload) error {
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return appErrors.Clone(appErrors.ErrValidation, "not an image, please upload only images")
	}
	if upload.Size > s.config.MaxUploadBytes {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("image exceeds the %d byte limit", s.config.MaxUploadBytes))
	}
	return nil
}

// decrypt maps a row into the API shape with identity fields decrypted.
// A failed decrypt falls back to the raw ciphertext so one corrupted field
// never fails the whole request; the fallback is logged and counted.
func (s *StudentService) decrypt(student models.Student) models.StudentRecord {
	record := student.Record()
	record.Name = s.decryptField(student.ID, "name", student.Name)
	record.StudentID = s.decryptField(student.ID, "student_id", student.StudentID)
	record.Email = s.decryptField(student.ID, "email", student.Email)
	return record
}

func (s *StudentService) decryptField(id, field, value string) string {
	plaintext, ok := s.cipher.Decrypt(value)
	if !ok {
		if s.metrics != nil {
			s.metrics.ObserveDecryptFallback()
		}
		s.logger.Warn("identity field decrypt failed, returning raw value",
			zap.String("id", id), zap.String("field", field))
	}
	return plaintext
}

func (s *StudentService) enqueueDestroy(assetID string) {
	if s.cleanup == nil || assetID == "" {
		return
	}
	if err := s.cleanup.Enqueue(jobs.Job{Kind: JobKindDestroyAsset, ID: assetID, Payload: assetID}); err != nil {
		s.logger.Warn("failed to enqueue media cleanup", zap.String("asset_id", assetID), zap.Error(err))
	}
}

func (s *StudentService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, listCacheKey); err != nil {
		s.logger.Warn("failed to invalidate student list cache", zap.Error(err))
	}
}
