package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soham-0-0-7/ai-quizzer/internal/middleware"
	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

type UserHandler struct {
	authService *services.AuthService
	log         *logrus.Entry
}

func NewUserHandler(authService *services.AuthService, log *logrus.Entry) *UserHandler {
	return &UserHandler{authService: authService, log: log}
}

type SignupRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"password123"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"password123"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Signup godoc
// @Summary      Create an account
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup data"
// @Success      201 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /user/signup [post]
func (h *UserHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.authService.Signup(c.Request.Context(), req.Email, req.Username, req.Password); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "Successful account creation, please login on user/login."})
}

// Login godoc
// @Summary      Log in with email or username
// @Description  Issues a token, stores it in the session cookie and warms the quiz cache
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /user/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), services.LoginParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(middleware.SessionTokenKey, token)
	if err := sess.Save(); err != nil {
		h.log.WithError(err).Warn("failed to save session cookie")
	}

	c.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful, save the token for future requests.",
		Token:   token,
	})
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the token until it expires and clears cached data
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} MessageResponse
// @Failure      401 {object} ErrorResponse
// @Router       /user/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	token := middleware.TokenFromRequest(c)
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		respondError(c, h.log, err)
		return
	}

	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true})
	if err := sess.Save(); err != nil {
		h.log.WithError(err).Warn("failed to clear session cookie")
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Successfully logged out, deleted cache, and invalidated token."})
}
