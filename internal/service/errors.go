// Package service holds the engagement, feed, streak and post use cases.
// Services are stateless apart from their injected collaborators and return
// *models.AppError for every failure a client should see.
package service

import (
	"errors"
	"fmt"

	"squadfeed/internal/models"
	"squadfeed/internal/repository"
)

// storageError maps a repository error onto the API error taxonomy.
func storageError(err error, resource string, id interface{}) error {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrPostNotFound), errors.Is(err, repository.ErrStreakNotFound):
		return models.NewNotFoundError(resource, id)
	default:
		return models.NewInternalError(fmt.Errorf("%s %v: %w", resource, id, err))
	}
}
