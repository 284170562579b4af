// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// constraintKind classifies err by the integrity rule it broke, or "" for other errors.
// Postgres reports a SQLSTATE; sqlite only has message text.
func constraintKind(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return pgForeignKeyViolation
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return pgUniqueViolation
	case strings.Contains(msg, "foreign key constraint"):
		return pgForeignKeyViolation
	case strings.Contains(msg, "check constraint"):
		return pgCheckViolation
	}
	return ""
}

func isUniqueConstraintError(err error) bool {
	return err != nil && constraintKind(err) == pgUniqueViolation
}

// translate turns a gorm error about resource id into an *models.AppError. Errors that are
// already AppErrors pass through.
func translate(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}

	switch constraintKind(err) {
	case pgUniqueViolation:
		return models.NewConflictError(resource + " already exists")
	case pgForeignKeyViolation:
		return models.NewValidationError(resource + " references a missing record")
	case pgCheckViolation:
		return models.NewValidationError(resource + " has an invalid value")
	}
	return models.NewInternalError(err)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return min(limit, maxListLimit), max(offset, 0)
}
