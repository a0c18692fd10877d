package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/media"
	"github.com/noah-isme/student-records-api/internal/models"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/fieldcrypt"
	"github.com/noah-isme/student-records-api/pkg/jobs"
)

type mockStudentRepo struct {
	students  map[string]models.Student
	createErr error
	updateErr error
}

func (m *mockStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = fmt.Sprintf("generated-%d", len(m.students)+1)
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.StudentID != nil {
		s.StudentID = *patch.StudentID
	}
	if patch.Email != nil {
		s.Email = *patch.Email
	}
	if patch.Course != nil {
		s.Course = *patch.Course
	}
	if patch.Year != nil {
		s.Year = *patch.Year
	}
	if patch.Image != nil {
		s.Image = *patch.Image
	}
	if patch.MediaAssetID != nil {
		s.MediaAssetID = *patch.MediaAssetID
	}
	s.UpdatedAt = time.Now().UTC()
	m.students[id] = s
	return &s, nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.students, id)
	return nil
}

type mockUploader struct {
	uploads   int
	destroyed []string
	err       error
}

func (m *mockUploader) Upload(ctx context.Context, upload media.Upload) (*media.Asset, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.uploads++
	return &media.Asset{URL: "https://media.test/asset.png", AssetID: "asset-1"}, nil
}

func (m *mockUploader) Destroy(ctx context.Context, assetID string) error {
	m.destroyed = append(m.destroyed, assetID)
	return nil
}

type mockQueue struct {
	jobs []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func testUpload() *media.Upload {
	return &media.Upload{
		Filename:    "photo.png",
		ContentType: "image/png",
		Size:        128,
		Content:     strings.NewReader("not really a png"),
	}
}

func newTestService(repo *mockStudentRepo, uploader media.Uploader, queue cleanupQueue) *StudentService {
	return NewStudentService(repo, fieldcrypt.New("test_secret"), uploader, nil, queue, nil, zap.NewNop(), StudentServiceConfig{})
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	uploader := &mockUploader{}
	svc := newTestService(repo, uploader, &mockQueue{})

	record, err := svc.Create(context.Background(), CreateStudentRequest{
		Name:      "John Doe",
		StudentID: "S1",
		Email:     "a@b.com",
		Course:    "CS",
		Year:      "2",
	}, testUpload())
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "John Doe", record.Name)
	assert.Equal(t, "S1", record.StudentID)
	assert.Equal(t, "a@b.com", record.Email)
	assert.Equal(t, 2, record.Year)
	assert.Equal(t, "https://media.test/asset.png", record.Image)
	assert.Equal(t, 1, uploader.uploads)

	// The persisted row must hold ciphertext, not the plaintext.
	stored := repo.students[record.ID]
	assert.NotEqual(t, "John Doe", stored.Name)
	assert.NotEqual(t, "S1", stored.StudentID)
	assert.NotEqual(t, "a@b.com", stored.Email)
	assert.Equal(t, "CS", stored.Course)
}

func TestStudentServiceCreateMissingFields(t *testing.T) {
	repo := &mockStudentRepo{}
	uploader := &mockUploader{}
	svc := newTestService(repo, uploader, &mockQueue{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Name:      "John Doe",
		StudentID: "S1",
		Email:     "a@b.com",
		Course:    "CS",
	}, testUpload())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "Year")
	assert.Equal(t, 0, uploader.uploads, "nothing should reach the media host")
	assert.Empty(t, repo.students, "no record should be persisted")
}

func TestStudentServiceCreateMissingImage(t *testing.T) {
	svc := newTestService(&mockStudentRepo{}, &mockUploader{}, &mockQueue{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, nil)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestStudentServiceCreateRejectsNonImage(t *testing.T) {
	svc := newTestService(&mockStudentRepo{}, &mockUploader{}, &mockQueue{})

	upload := testUpload()
	upload.ContentType = "application/pdf"
	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, upload)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestStudentServiceCreateConflictCleansUpAsset(t *testing.T) {
	repo := &mockStudentRepo{createErr: &pq.Error{Code: "23505"}}
	queue := &mockQueue{}
	svc := newTestService(repo, &mockUploader{}, queue)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, testUpload())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobKindDestroyAsset, queue.jobs[0].Kind)
	assert.Equal(t, "asset-1", queue.jobs[0].Payload)
}

func TestStudentServiceUpdatePartial(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestService(repo, &mockUploader{}, &mockQueue{})

	created, err := svc.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, testUpload())
	require.NoError(t, err)
	before := repo.students[created.ID]

	course := "Physics"
	updated, err := svc.Update(context.Background(), created.ID, UpdateStudentRequest{Course: &course})
	require.NoError(t, err)

	assert.Equal(t, "Physics", updated.Course)
	assert.Equal(t, "John Doe", updated.Name)
	assert.Equal(t, "S1", updated.StudentID)
	assert.Equal(t, "a@b.com", updated.Email)
	assert.Equal(t, created.Image, updated.Image)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt) || updated.UpdatedAt.Equal(before.UpdatedAt))

	after := repo.students[created.ID]
	assert.Equal(t, before.Name, after.Name, "ciphertext of untouched fields must not change")
	assert.Equal(t, before.StudentID, after.StudentID)
	assert.Equal(t, before.Email, after.Email)
}

func TestStudentServiceUpdateNotFound(t *testing.T) {
	svc := newTestService(&mockStudentRepo{}, &mockUploader{}, &mockQueue{})

	course := "Physics"
	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{Course: &course})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStudentServiceUpdateImageReplacementSchedulesCleanup(t *testing.T) {
	repo := &mockStudentRepo{}
	queue := &mockQueue{}
	svc := newTestService(repo, &mockUploader{}, queue)

	created, err := svc.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, testUpload())
	require.NoError(t, err)

	newImage := "https://elsewhere.test/new.png"
	updated, err := svc.Update(context.Background(), created.ID, UpdateStudentRequest{Image: &newImage})
	require.NoError(t, err)
	assert.Equal(t, newImage, updated.Image)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "asset-1", queue.jobs[0].Payload)
	assert.Empty(t, repo.students[created.ID].MediaAssetID)
}

func TestStudentServiceDelete(t *testing.T) {
	repo := &mockStudentRepo{}
	queue := &mockQueue{}
	svc := newTestService(repo, &mockUploader{}, queue)

	created, err := svc.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, testUpload())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Empty(t, repo.students)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobKindDestroyAsset, queue.jobs[0].Kind)

	// The record is gone for good.
	_, err = svc.Get(context.Background(), created.ID)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStudentServiceDeleteNotFound(t *testing.T) {
	svc := newTestService(&mockStudentRepo{}, &mockUploader{}, &mockQueue{})

	err := svc.Delete(context.Background(), "missing")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStudentServiceListDecryptsNewestFirst(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestService(repo, &mockUploader{}, &mockQueue{})

	for i, name := range []string{"First", "Second", "Third"} {
		_, err := svc.Create(context.Background(), CreateStudentRequest{
			Name:      name,
			StudentID: fmt.Sprintf("S%d", i+1),
			Email:     fmt.Sprintf("s%d@b.com", i+1),
			Course:    "CS",
			Year:      "1",
		}, testUpload())
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	records, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Third", records[0].Name)
	assert.Equal(t, "Second", records[1].Name)
	assert.Equal(t, "First", records[2].Name)
}

func TestStudentServiceDecryptFallbackReturnsRawValue(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"id1": {ID: "id1", Name: "not-a-ciphertext", StudentID: "also-bad", Email: "still-bad", Course: "CS"},
	}}
	svc := newTestService(repo, &mockUploader{}, &mockQueue{})

	record, err := svc.Get(context.Background(), "id1")
	require.NoError(t, err, "a corrupted field must not fail the request")
	assert.Equal(t, "not-a-ciphertext", record.Name)
	assert.Equal(t, "also-bad", record.StudentID)
	assert.Equal(t, "still-bad", record.Email)
}

func TestStudentServiceUpstreamUploadFailure(t *testing.T) {
	svc := newTestService(&mockStudentRepo{}, &mockUploader{err: errors.New("host down")}, &mockQueue{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, testUpload())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
}
