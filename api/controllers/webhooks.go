package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arjunkapur/swiftkart-backend/api/responses"
	"github.com/arjunkapur/swiftkart-backend/api/validators"
	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

type gatewayWebhookRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
	Status         string `json:"status" validate:"required,oneof=paid failed pending"`
	AmountPaise    int64  `json:"amount_paise,omitempty" validate:"omitempty,gt=0"`
	GatewayRef     string `json:"gateway_ref,omitempty"`
	Reason         string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// GatewayWebhook ingests a normalized payment callback. The raw gateway
// payloads are translated upstream; this endpoint only sees the common shape.
func GatewayWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gateway, err := enums.ParsePaymentGateway(strings.ToLower(chi.URLParam(r, "gateway")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment gateway"))
			return
		}
		var body gatewayWebhookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.HandleWebhook(r.Context(), payments.WebhookInput{
			Gateway:        gateway,
			GatewayOrderID: body.GatewayOrderID,
			Paid:           body.Status == "paid",
			Failed:         body.Status == "failed",
			AmountPaise:    body.AmountPaise,
			GatewayRef:     body.GatewayRef,
			FailureReason:  body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
