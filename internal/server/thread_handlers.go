package server

import (
	"strconv"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/service"

	"github.com/gofiber/fiber/v2"
)

type threadRequest struct {
	Title    *string  `json:"title"`
	Body     *string  `json:"body"`
	Tags     []string `json:"tags"`
	IsLocked *bool    `json:"is_locked"`
}

// GetThreads handles GET /api/threads
// @Summary List threads
// @Description Newest first; deleted threads are never listed
// @Tags threads
// @Param tag query string false "Tag filter"
// @Param user_id query int false "Author filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Thread
// @Router /threads [get]
func (s *Server) GetThreads(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	authorID, _ := strconv.ParseUint(c.Query("user_id"), 10, 32)
	threads, err := s.threadService.ListThreads(c.UserContext(), service.ListThreadsInput{
		AuthorID: uint(authorID),
		Tag:      c.Query("tag"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(threads)
}

// SearchThreads handles GET /api/threads/search?q=
// @Summary Search threads
// @Description Case-insensitive substring match over title, body and tags of recent threads
// @Tags threads
// @Param q query string true "Query"
// @Param limit query int false "Max results"
// @Success 200 {array} models.Thread
// @Router /threads/search [get]
func (s *Server) SearchThreads(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	threads, err := s.threadService.SearchThreads(c.UserContext(), c.Query("q"), p.Limit)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(threads)
}

// GetThread handles GET /api/threads/:id. The response carries the caller's permitted actions.
// @Summary Get thread
// @Tags threads
// @Param id path int true "Thread ID"
// @Success 200 {object} service.ThreadView
// @Failure 404 {object} models.ErrorResponse
// @Router /threads/{id} [get]
func (s *Server) GetThread(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	view, err := s.threadService.GetThreadView(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(view)
}

// CreateThread handles POST /api/threads
// @Summary Create thread
// @Tags threads
// @Security BearerAuth
// @Accept json
// @Param request body object{title=string,body=string,tags=[]string} true "Thread"
// @Success 201 {object} models.Thread
// @Failure 400 {object} models.ErrorResponse
// @Router /threads [post]
func (s *Server) CreateThread(c *fiber.Ctx) error {
	var req threadRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	in := service.CreateThreadInput{UserID: currentUserID(c), Tags: req.Tags}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Body != nil {
		in.Body = *req.Body
	}
	thread, err := s.threadService.CreateThread(c.UserContext(), in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(thread)
}

// UpdateThread handles PUT /api/threads/:id; owner or admin.
// @Summary Update thread
// @Tags threads
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Success 200 {object} models.Thread
// @Failure 403 {object} models.ErrorResponse
// @Router /threads/{id} [put]
func (s *Server) UpdateThread(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req threadRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	thread, err := s.threadService.UpdateThread(c.UserContext(), service.UpdateThreadInput{
		UserID:   currentUserID(c),
		ThreadID: id,
		Title:    req.Title,
		Body:     req.Body,
		Tags:     req.Tags,
		IsLocked: req.IsLocked,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(thread)
}

// DeleteThread handles DELETE /api/threads/:id; the thread is hidden, not erased.
// @Summary Delete thread
// @Tags threads
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Success 200 {object} object{message=string}
// @Router /threads/{id} [delete]
func (s *Server) DeleteThread(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.threadService.DeleteThread(c.UserContext(), currentUserID(c), id); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Thread deleted"})
}

// GetThreadVotes handles GET /api/threads/:id/votes
// @Summary Vote counts for a thread
// @Tags votes
// @Param id path int true "Thread ID"
// @Success 200 {object} service.VoteResult
// @Router /threads/{id}/votes [get]
func (s *Server) GetThreadVotes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.threadService.GetThread(c.UserContext(), id); err != nil {
		return models.Respond(c, err)
	}
	counts, err := s.voteService.Counts(c.UserContext(), currentUserID(c), string(models.TargetThread), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(counts)
}
