package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/export"
)

// ExportService renders the decrypted roster as CSV or PDF for the admin
// console.
type ExportService struct {
	students *StudentService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
}

// NewExportService constructs the export service.
func NewExportService(students *StudentService) *ExportService {
	return &ExportService{
		students: students,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
	}
}

// ExportResult carries rendered bytes plus HTTP metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Roster renders the full student list in the requested format.
func (s *ExportService) Roster(ctx context.Context, format string) (*ExportResult, error) {
	records, err := s.students.List(ctx)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Headers: []string{"Name", "Student ID", "Email", "Course", "Year", "Created At"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, record := range records {
		table.Rows = append(table.Rows, []string{
			record.Name,
			record.StudentID,
			record.Email,
			record.Course,
			strconv.Itoa(record.Year),
			record.CreatedAt.Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case "csv":
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, fmt.Errorf("render roster csv: %w", err)
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: "students-" + stamp + ".csv"}, nil
	case "pdf":
		content, err := s.pdf.Render(table, "Student Roster")
		if err != nil {
			return nil, fmt.Errorf("render roster pdf: %w", err)
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: "students-" + stamp + ".pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
