package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records-api/internal/service"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/response"
)

type loginService interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.LoginResponse, error)
}

// LoginHandler exposes the identity-confirmation endpoint.
type LoginHandler struct {
	login loginService
}

// NewLoginHandler constructs LoginHandler.
func NewLoginHandler(login loginService) *LoginHandler {
	return &LoginHandler{login: login}
}

// Login godoc
// @Summary Confirm student identity
// @Description Match email and student ID against stored records
// @Tags Login
// @Accept json
// @Produce json
// @Param payload body service.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /login [post]
func (h *LoginHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "email and student ID are required"))
		return
	}

	res, err := h.login.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, "")
}
