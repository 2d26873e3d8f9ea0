package billing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
)

type (
	GatewayChargeRequest struct {
		CustomerID        string
		Amount            decimal.Decimal
		DueDate           core.Date
		Description       string
		ExternalReference string // local charge id
	}

	GatewayCharge struct {
		PaymentLink string
		ExternalID  string
	}

	// Gateway is the hosted payment provider issuing payment links.
	Gateway interface {
		CreateOrFetchCustomer(ctx context.Context, name, taxID string) (string, error)
		CreateCharge(ctx context.Context, req GatewayChargeRequest) (GatewayCharge, error)
	}
)

// GatewayError is returned when the gateway rejects a request or cannot be reached.
type GatewayError struct {
	Op         string
	StatusCode int // 0 when the gateway was not reached
	Message    string
}

func (err *GatewayError) Error() string {
	if err.Op == "" {
		return "payment gateway: " + err.Message
	}
	return "payment gateway (" + err.Op + "): " + err.Message
}

func IsGatewayError(err error) bool {
	var gErr *GatewayError
	return errors.As(err, &gErr)
}

func asGatewayError(err error, op string) error {
	var gErr *GatewayError
	if errors.As(err, &gErr) {
		return gErr
	}
	return &GatewayError{Op: op, Message: err.Error()}
}
