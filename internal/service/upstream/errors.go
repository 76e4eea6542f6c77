// Package upstream maps transport failures of vendor calls onto provider error kinds.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"MarketPulse/internal/domain/models"
	xhttp "MarketPulse/pkg/http"
)

// Classify wraps err as a *models.ProviderError for provider.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *models.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		out := models.NewProviderError(provider, statusKind(se.Code), statusCause(se.Code, err))
		out.Status = se.Code
		return out
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return models.NewProviderError(provider, models.ErrProviderMalformed, err)
	case errors.Is(err, models.ErrNotConfigured):
		return models.NewProviderError(provider, models.ErrProviderUnavailable, err)
	case errors.Is(err, models.ErrProviderMalformed), errors.Is(err, models.ErrNotFound):
		return models.NewProviderError(provider, models.ErrProviderMalformed, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.NewProviderError(provider, models.ErrProviderTransient, err)
	default:
		return models.NewProviderError(provider, models.ErrProviderTransient, err)
	}
}

func statusKind(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return models.ErrProviderUnavailable
	case code == http.StatusTooManyRequests, code >= 500:
		return models.ErrProviderTransient
	default:
		return models.ErrProviderMalformed
	}
}

func statusCause(code int, err error) error {
	switch code {
	case http.StatusTooManyRequests:
		return errors.Join(models.ErrRateLimited, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Join(models.ErrNotConfigured, err)
	case http.StatusNotFound:
		return errors.Join(models.ErrNotFound, err)
	default:
		return err
	}
}
