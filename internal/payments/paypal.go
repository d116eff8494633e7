package payments

import (
	"context"

	"github.com/plutov/paypal/v4"

	pkgpaypal "github.com/madebyloom/loomline-backend/pkg/paypal"
)

// PayPalOrderClient exposes the subset of PayPal Orders v2 operations the
// orchestrator needs.
type PayPalOrderClient interface {
	CreateOrder(ctx context.Context, units []paypal.PurchaseUnitRequest, source *paypal.PaymentSource) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureOrderResponse, error)
}

type paypalClientWrapper struct {
	api *paypal.Client
}

// NewPayPalOrderClient wraps the initialized PayPal client so the
// orchestrator can be tested.
func NewPayPalOrderClient(client *pkgpaypal.Client) PayPalOrderClient {
	if client == nil || client.API() == nil {
		return nil
	}
	return &paypalClientWrapper{api: client.API()}
}

// Redirect URLs ride in the paypal payment source's experience context, so
// the legacy application_context slot stays nil.
func (w *paypalClientWrapper) CreateOrder(ctx context.Context, units []paypal.PurchaseUnitRequest, source *paypal.PaymentSource) (*paypal.Order, error) {
	return w.api.CreateOrder(ctx, paypal.OrderIntentCapture, units, source, nil)
}

func (w *paypalClientWrapper) CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureOrderResponse, error) {
	return w.api.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
}
