package catalog

import (
	"context"
	"errors"

	"github.com/fittingroom/storefront/internal/domain"
	apperrors "github.com/fittingroom/storefront/pkg/errors"
)

// Unavailable wraps a failure to reach backend. Context cancellation by the
// caller is passed through unchanged.
func Unavailable(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.BackendUnavailable(backend, err)
}

// ProductNotFound is returned for an unknown product id.
func ProductNotFound(id string) error {
	return apperrors.NotFound("product", id)
}

// EmptyBrands is the non-nil empty brand listing.
func EmptyBrands() []domain.BrandSummary {
	return []domain.BrandSummary{}
}
