package server

import (
	"strconv"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// FileReport handles POST /api/reports
// @Summary Report a thread or a user
// @Tags reports
// @Security BearerAuth
// @Accept json
// @Param request body object{kind=string,target_id=int,reason=string} true "Report"
// @Success 201 {object} models.Report
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /reports [post]
func (s *Server) FileReport(c *fiber.Ctx) error {
	var req struct {
		Kind     string `json:"kind"`
		TargetID uint   `json:"target_id"`
		Reason   string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	report, err := s.reportService.FileReport(c.UserContext(), service.FileReportInput{
		ReporterID: currentUserID(c),
		Kind:       req.Kind,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetAdminReports handles GET /api/admin/reports?kind=&status=
// @Summary List reports
// @Description Newest first; admin only
// @Tags admin
// @Security BearerAuth
// @Param kind query string false "thread or user"
// @Param status query string false "open, resolved or dismissed"
// @Success 200 {array} models.Report
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/reports [get]
func (s *Server) GetAdminReports(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	reports, err := s.reportService.ListReports(c.UserContext(), service.ListReportsInput{
		RequesterID: currentUserID(c),
		Kind:        c.Query("kind"),
		Status:      c.Query("status"),
		Limit:       p.Limit,
		Offset:      p.Offset,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(reports)
}

// GetOpenReportCount handles GET /api/admin/reports/open-count
func (s *Server) GetOpenReportCount(c *fiber.Ctx) error {
	n, err := s.reportService.OpenCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"open": n})
}

// UpdateReportStatus handles PATCH /api/admin/reports/:id
// @Summary Resolve, dismiss or reopen a report
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Report ID"
// @Param request body object{status=string} true "New status"
// @Success 200 {object} models.Report
// @Failure 422 {object} models.ErrorResponse
// @Router /admin/reports/{id} [patch]
func (s *Server) UpdateReportStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	report, err := s.reportService.UpdateStatus(c.UserContext(), currentUserID(c), id, req.Status)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// GetDebugTrail handles GET /api/admin/debug
// @Summary Recent debug trail entries
// @Description Entries expire on their own after the retention window
// @Tags admin
// @Security BearerAuth
// @Success 200 {array} models.DebugEntry
// @Router /admin/debug [get]
func (s *Server) GetDebugTrail(c *fiber.Ctx) error {
	entries, err := s.auditService.RecentDebug(c.UserContext(), currentUserID(c), c.QueryInt("limit", 100))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(entries)
}

// GetAuditLog handles GET /api/admin/audit?actor_id=
// @Summary Audit log
// @Tags admin
// @Security BearerAuth
// @Success 200 {array} models.AuditLog
// @Router /admin/audit [get]
func (s *Server) GetAuditLog(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	var actorFilter *uint
	if raw := c.Query("actor_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid actor ID"))
		}
		actor := uint(id)
		actorFilter = &actor
	}
	entries, err := s.auditService.ListAudit(c.UserContext(), currentUserID(c), actorFilter, p.Limit, p.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(entries)
}

// GetFeatureFlags returns configured feature flags and their evaluated state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
		"invalid":   s.featureFlags.Invalid(),
	})
}
