package controllers

import (
	"net/http"

	"github.com/arjunkapur/swiftkart-backend/api/middleware"
	"github.com/arjunkapur/swiftkart-backend/api/responses"
	"github.com/arjunkapur/swiftkart-backend/api/validators"
	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

type retryPaymentRequest struct {
	Gateway string `json:"gateway,omitempty" validate:"omitempty,oneof=smepay cashfree"`
	Channel string `json:"channel,omitempty" validate:"omitempty,oneof=qr cash"`
}

func PaymentStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Status(r.Context(), payments.StatusInput{
			OrderID:     orderID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// PaymentRetry opens a fresh payment intent for the order. When the order
// already has an open attempt that attempt is returned unchanged.
func PaymentRetry(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body retryPaymentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := payments.CreateIntentInput{
			OrderID:     orderID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		}
		if body.Gateway != "" {
			gateway, err := enums.ParsePaymentGateway(body.Gateway)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gateway"))
				return
			}
			input.Gateway = gateway
		}
		if body.Channel != "" {
			channel, err := enums.ParsePaymentChannel(body.Channel)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel"))
				return
			}
			input.Channel = channel
		}

		view, err := svc.CreateIntent(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}
