package activities

import (
	"errors"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"go.temporal.io/sdk/temporal"
)

// toApplicationError tags typed errors so workflows can classify them after
// they cross the activity boundary. Kinds that need a person rather than a
// retry are marked non-retryable.
func toApplicationError(err error) error {
	if err == nil {
		return nil
	}

	var (
		validation  *models.ValidationError
		pricing     *models.PricingError
		config      *models.ConfigurationError
		unavailable *models.GatewayUnavailableError
		refund      *models.RefundFailure
	)
	switch {
	case errors.As(err, &validation):
		return temporal.NewNonRetryableApplicationError(err.Error(), models.ErrTypeValidation, err, validation.Fields)
	case errors.As(err, &pricing):
		return temporal.NewNonRetryableApplicationError(err.Error(), models.ErrTypePricing, err)
	case errors.As(err, &config):
		return temporal.NewNonRetryableApplicationError(err.Error(), models.ErrTypeConfiguration, err)
	case errors.As(err, &refund):
		return temporal.NewNonRetryableApplicationError(err.Error(), models.ErrTypeRefund, err)
	case errors.Is(err, models.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), models.ErrTypeNotFound, err)
	case errors.As(err, &unavailable):
		return temporal.NewApplicationErrorWithCause(err.Error(), models.ErrTypeGatewayUnavailable, err)
	default:
		return err
	}
}
