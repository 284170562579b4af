package server

import (
	"time"

	"github.com/nocson47/beaconofknowledge/internal/middleware"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest identifies the account by login, username or email, in that order.
type LoginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) identifier() string {
	for _, v := range []string{r.Login, r.Username, r.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

// AuthResponse is returned by signup, login and refresh.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *Server) issueFor(c *fiber.Ctx, status int, user *models.User) error {
	token, exp, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}
	return c.Status(status).JSON(AuthResponse{Token: token, ExpiresAt: exp, User: user})
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new member account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput(req))
	if err != nil {
		return models.Respond(c, err)
	}
	return s.issueFor(c, fiber.StatusCreated, user)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate by username or email and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.identifier(), req.Password)
	if err != nil {
		return models.Respond(c, err)
	}
	return s.issueFor(c, fiber.StatusOK, user)
}

// Logout handles POST /api/auth/logout by revoking the presented token until it expires.
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims, ok := c.Locals(middleware.LocalsClaims).(*middleware.TokenClaims); ok {
		if err := s.revocations.Revoke(c.UserContext(), claims.JTI, claims.ExpiresAt); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "Token revocation failed", "error", err)
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Refresh handles POST /api/auth/refresh. The new token carries the stored role, and the old one is revoked.
// @Summary Refresh token
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthenticatedError("Session is no longer valid"))
	}
	if claims, ok := c.Locals(middleware.LocalsClaims).(*middleware.TokenClaims); ok {
		_ = s.revocations.Revoke(c.UserContext(), claims.JTI, claims.ExpiresAt)
	}
	return s.issueFor(c, fiber.StatusOK, user)
}

// ForgotPassword handles POST /api/auth/password/forgot. The answer never reveals whether the email exists.
// @Summary Request a password reset
// @Tags auth
// @Accept json
// @Param request body object{email=string} true "Account email"
// @Success 200 {object} object{message=string}
// @Router /auth/password/forgot [post]
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Email == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Email is required"))
	}
	if err := s.resetService.RequestReset(c.UserContext(), req.Email); err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "Password reset request failed", "error", err)
	}
	return c.JSON(fiber.Map{"message": service.ForgotPasswordMessage})
}

// ResetPassword handles POST /api/auth/password/reset
// @Summary Reset a password with a token
// @Tags auth
// @Accept json
// @Param request body object{token=string,password=string} true "Reset request"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/password/reset [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.resetService.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}
