package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

func newExportFixture(t *testing.T) *ExportService {
	t.Helper()
	repo := &mockStudentRepo{}
	students := newTestService(repo, &mockUploader{}, &mockQueue{})

	_, err := students.Create(context.Background(), CreateStudentRequest{
		Name: "John Doe", StudentID: "S1", Email: "a@b.com", Course: "CS", Year: "2",
	}, testUpload())
	require.NoError(t, err)

	return NewExportService(students)
}

func TestExportRosterCSV(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Roster(context.Background(), "csv")
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Content)
	assert.Contains(t, body, "Name,Student ID,Email,Course,Year,Created At")
	// Exports carry the decrypted identity fields.
	assert.Contains(t, body, "John Doe,S1,a@b.com,CS,2,")
}

func TestExportRosterPDF(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Roster(context.Background(), "pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportRosterUnsupportedFormat(t *testing.T) {
	svc := newExportFixture(t)

	_, err := svc.Roster(context.Background(), "xlsx")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
