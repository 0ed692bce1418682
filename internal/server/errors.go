// Package server provides the HTTP admin API for the article engine.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/article-engine/internal/types"
)

// ErrInvalidSecret indicates the operator secret presented for token
// issuance did not match.
type ErrInvalidSecret struct{}

func (e *ErrInvalidSecret) Error() string {
	return "invalid operator secret"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr   *types.ErrValidation
		notFoundErr     *types.ErrJobNotFound
		cfgNotFoundErr  *types.ErrConfigurationNotFound
		transitionErr   *types.ErrInvalidTransition
		operationErr    *types.ErrInvalidOperation
		rateLimitedErr  *types.ErrRateLimited
		invalidSecret   *ErrInvalidSecret
		credentialError *types.ErrCredential
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr), errors.As(err, &cfgNotFoundErr):
		return http.StatusNotFound
	case errors.As(err, &transitionErr), errors.As(err, &operationErr):
		return http.StatusConflict
	case errors.As(err, &rateLimitedErr):
		return http.StatusTooManyRequests
	case errors.As(err, &invalidSecret):
		return http.StatusUnauthorized
	case errors.As(err, &credentialError):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
