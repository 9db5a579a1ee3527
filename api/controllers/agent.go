package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/api/middleware"
	"github.com/arjunkapur/swiftkart-backend/api/responses"
	"github.com/arjunkapur/swiftkart-backend/api/validators"
	"github.com/arjunkapur/swiftkart-backend/internal/delivery"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

type completeDeliveryRequest struct {
	OTP           string `json:"otp,omitempty" validate:"omitempty,len=4,numeric"`
	CashCollected bool   `json:"cash_collected,omitempty"`
}

type verifyPickupRequest struct {
	OrderNumber string `json:"order_number" validate:"required"`
}

func AgentQueue(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		if actor.Role != enums.ActorRoleAgent {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "agent role required"))
			return
		}
		list, err := svc.AgentAssignments(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AgentReachSeller(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return agentCheckpoint(logg, func(r *http.Request, orderID, agentID uuid.UUID) error {
		return svc.ReachSeller(r.Context(), delivery.CheckpointInput{OrderID: orderID, AgentID: agentID})
	})
}

func AgentVerifyPickup(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return agentCheckpoint(logg, func(r *http.Request, orderID, agentID uuid.UUID) error {
		var body verifyPickupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		return svc.VerifyPickup(r.Context(), delivery.VerifyPickupInput{
			OrderID:     orderID,
			AgentID:     agentID,
			OrderNumber: body.OrderNumber,
		})
	})
}

func AgentReachBuyer(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		if actor.Role != enums.ActorRoleAgent {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "agent role required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ReachBuyer(r.Context(), delivery.CheckpointInput{OrderID: orderID, AgentID: actor.UserID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AgentCompleteDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		if actor.Role != enums.ActorRoleAgent {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "agent role required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body completeDeliveryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.CompleteDelivery(r.Context(), delivery.CompleteInput{
			OrderID:       orderID,
			AgentID:       actor.UserID,
			OTP:           body.OTP,
			CashCollected: body.CashCollected,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "delivered"})
	}
}

func agentCheckpoint(logg *logger.Logger, fn func(r *http.Request, orderID, agentID uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		if actor.Role != enums.ActorRoleAgent {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "agent role required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := fn(r, orderID, actor.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
