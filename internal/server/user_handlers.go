package server

import (
	"io"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Bio        *string `json:"bio"`
	GithubURL  *string `json:"github_url"`
	TwitterURL *string `json:"twitter_url"`
	WebsiteURL *string `json:"website_url"`
}

// GetMyProfile handles GET /api/users/me
// @Summary Who am I
// @Tags users
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		// a valid token for a user that no longer resolves is not a session
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthenticatedError("Session is no longer valid"))
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Success 200 {object} models.User
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	return s.updateProfile(c, currentUserID(c))
}

// UpdateUserProfile handles PUT /api/users/:id; owners and admins only.
func (s *Server) UpdateUserProfile(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.updateProfile(c, targetID)
}

func (s *Server) updateProfile(c *fiber.Ctx, targetID uint) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		ActorID:    currentUserID(c),
		TargetID:   targetID,
		Bio:        req.Bio,
		GithubURL:  req.GithubURL,
		TwitterURL: req.TwitterURL,
		WebsiteURL: req.WebsiteURL,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user)
}

// GetAllUsers handles GET /api/users
// @Summary List users
// @Tags users
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PublicProfile
// @Router /users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	users, err := s.userService.ListUsers(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(models.PublicProfiles(users))
}

// GetUserProfile handles GET /api/users/:id. Only /users/me shows the email.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user.Public())
}

// GetUserByUsername handles GET /api/users/username/:username
func (s *Server) GetUserByUsername(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user.Public())
}

// GetUserThreads handles GET /api/users/:id/threads
func (s *Server) GetUserThreads(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, defaultPageSize)
	threads, err := s.threadService.ListThreads(c.UserContext(), service.ListThreadsInput{
		AuthorID: id,
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(threads)
}

// SetUserRole handles PATCH /api/users/:id/role; admin only.
// @Summary Change a user's role
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{role=string} true "member or admin"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{id}/role [patch]
func (s *Server) SetUserRole(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.userService.SetRole(c.UserContext(), currentUserID(c), targetID, models.Role(req.Role))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user)
}

// UploadAvatar handles POST /api/users/me/avatar with a multipart "avatar" file.
// @Summary Upload avatar
// @Tags users
// @Security BearerAuth
// @Accept multipart/form-data
// @Param avatar formData file true "Image (jpeg, png, gif, webp)"
// @Success 200 {object} object{avatar_url=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	url, err := s.avatarService.Upload(c.UserContext(), service.UploadAvatarInput{
		UserID:      currentUserID(c),
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"avatar_url": url})
}
