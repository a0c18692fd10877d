package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records-api/internal/media"
	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/service"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/response"
)

type studentService interface {
	Create(ctx context.Context, req service.CreateStudentRequest, upload *media.Upload) (*models.StudentRecord, error)
	Update(ctx context.Context, id string, req service.UpdateStudentRequest) (*models.StudentRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.StudentRecord, error)
	Get(ctx context.Context, id string) (*models.StudentRecord, error)
}

// StudentHandler exposes the student record endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// Add godoc
// @Summary Add student
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Name"
// @Param studentId formData string true "Student ID"
// @Param email formData string true "Email"
// @Param course formData string true "Course"
// @Param year formData string true "Year"
// @Param image formData file true "Student image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /add-student [post]
func (h *StudentHandler) Add(c *gin.Context) {
	req := service.CreateStudentRequest{
		Name:      c.PostForm("name"),
		StudentID: c.PostForm("studentId"),
		Email:     c.PostForm("email"),
		Course:    c.PostForm("course"),
		Year:      c.PostForm("year"),
	}

	var upload *media.Upload
	if fileHeader, err := c.FormFile("image"); err == nil {
		src, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, appErrors.Wrap(openErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded image"))
			return
		}
		defer src.Close()
		upload = &media.Upload{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Content:     src,
		}
	}

	record, err := h.students.Create(c.Request.Context(), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record, "student added successfully")
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept x-www-form-urlencoded
// @Produce json
// @Param id path string true "Student ID"
// @Param name formData string false "Name"
// @Param studentId formData string false "Student ID"
// @Param email formData string false "Email"
// @Param course formData string false "Course"
// @Param year formData string false "Year"
// @Param image formData string false "Image URL"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /update-student/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if v, ok := c.GetPostForm("name"); ok {
		req.Name = &v
	}
	if v, ok := c.GetPostForm("studentId"); ok {
		req.StudentID = &v
	}
	if v, ok := c.GetPostForm("email"); ok {
		req.Email = &v
	}
	if v, ok := c.GetPostForm("course"); ok {
		req.Course = &v
	}
	if v, ok := c.GetPostForm("year"); ok {
		req.Year = &v
	}
	if v, ok := c.GetPostForm("image"); ok {
		req.Image = &v
	}

	record, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, "student updated successfully")
}

// Delete godoc
// @Summary Delete student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /delete-student/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nil, "student deleted successfully")
}

// List godoc
// @Summary List students, newest first
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /get-students [get]
func (h *StudentHandler) List(c *gin.Context) {
	records, err := h.students.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, "")
}

// Get godoc
// @Summary Get a single student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /get-student/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	record, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, "")
}
