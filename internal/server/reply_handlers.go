package server

import (
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetReplies handles GET /api/threads/:id/replies
// @Summary List replies of a thread
// @Tags replies
// @Param id path int true "Thread ID"
// @Success 200 {array} models.Reply
// @Router /threads/{id}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	replies, err := s.replyService.ListReplies(c.UserContext(), threadID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(replies)
}

// CreateReply handles POST /api/threads/:id/replies
// @Summary Reply to a thread
// @Tags replies
// @Security BearerAuth
// @Param id path int true "Thread ID"
// @Param request body object{body=string,parent_id=int} true "Reply"
// @Success 201 {object} models.Reply
// @Failure 422 {object} models.ErrorResponse
// @Router /threads/{id}/replies [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Body     string `json:"body"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	reply, err := s.replyService.CreateReply(c.UserContext(), service.CreateReplyInput{
		UserID:   currentUserID(c),
		ThreadID: threadID,
		ParentID: req.ParentID,
		Body:     req.Body,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// UpdateReply handles PUT /api/replies/:id
func (s *Server) UpdateReply(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	reply, err := s.replyService.UpdateReply(c.UserContext(), currentUserID(c), id, req.Body)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(reply)
}

// DeleteReply handles DELETE /api/replies/:id
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.replyService.DeleteReply(c.UserContext(), currentUserID(c), id); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reply deleted"})
}
