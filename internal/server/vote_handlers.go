package server

import (
	"fmt"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CastVote handles POST /api/votes. value accepts "up", "down", 1 or -1; repeating the same
// direction changes nothing.
// @Summary Cast a vote
// @Tags votes
// @Security BearerAuth
// @Accept json
// @Param request body object{target_type=string,target_id=int,value=string} true "Vote"
// @Success 200 {object} service.VoteResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /votes [post]
func (s *Server) CastVote(c *fiber.Ctx) error {
	var req struct {
		TargetType string `json:"target_type"`
		TargetID   uint   `json:"target_id"`
		Value      any    `json:"value"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.TargetID == 0 || req.Value == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("target_id and value are required"))
	}

	result, err := s.voteService.CastVote(c.UserContext(), service.CastVoteInput{
		UserID:     currentUserID(c),
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Value:      fmt.Sprint(req.Value),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(result)
}
