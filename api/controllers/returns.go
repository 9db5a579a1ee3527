package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/api/middleware"
	"github.com/arjunkapur/swiftkart-backend/api/responses"
	"github.com/arjunkapur/swiftkart-backend/api/validators"
	"github.com/arjunkapur/swiftkart-backend/internal/returns"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

type requestReturnRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type reviewReturnRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type assignReturnRequest struct {
	AgentID string `json:"agent_id" validate:"required,uuid"`
}

type verifyReturnRequest struct {
	OTP string `json:"otp" validate:"required,len=4,numeric"`
}

type failPickupRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

func ReturnRequest(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers request returns"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body requestReturnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Request(r.Context(), returns.RequestInput{
			OrderID: orderID,
			BuyerID: actor.UserID,
			Reason:  body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func ReturnGet(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ReturnApprove(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnReview(logg, svc.Approve)
}

func ReturnReject(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnReview(logg, svc.Reject)
}

func returnReview(logg *logger.Logger, fn func(ctx context.Context, input returns.ReviewInput) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body reviewReturnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := fn(r.Context(), returns.ReviewInput{
			ReturnID:    returnID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Reason:      body.Reason,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func ReturnAssign(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAssign(logg, svc.Assign)
}

func ReturnReassign(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAssign(logg, svc.Reassign)
}

func returnAssign(logg *logger.Logger, fn func(ctx context.Context, input returns.AssignInput) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body assignReturnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agentID, _ := uuid.Parse(body.AgentID)
		if err := fn(r.Context(), returns.AssignInput{
			ReturnID:    returnID,
			AgentID:     agentID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func ReturnAccept(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAgentMove(logg, svc.Accept)
}

func ReturnReachBuyer(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAgentMove(logg, svc.ReachBuyer)
}

func ReturnReachSeller(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnAgentMove(logg, svc.ReachSeller)
}

func returnAgentMove(logg *logger.Logger, fn func(ctx context.Context, input returns.AgentInput) error) http.HandlerFunc {
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
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := fn(r.Context(), returns.AgentInput{ReturnID: returnID, AgentID: actor.UserID}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func ReturnVerifyPickup(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnVerify(logg, svc.VerifyPickup)
}

func ReturnHandToSeller(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnVerify(logg, svc.HandToSeller)
}

func returnVerify(logg *logger.Logger, fn func(ctx context.Context, input returns.VerifyInput) error) http.HandlerFunc {
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
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body verifyReturnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := fn(r.Context(), returns.VerifyInput{
			ReturnID: returnID,
			AgentID:  actor.UserID,
			OTP:      body.OTP,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func ReturnFailPickup(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
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
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body failPickupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.FailPickup(r.Context(), returns.FailInput{
			ReturnID: returnID,
			AgentID:  actor.UserID,
			Reason:   body.Reason,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func ReturnComplete(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Complete(r.Context(), returns.CompleteInput{
			ReturnID:    returnID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func ReturnAgentQueue(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
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
		views, err := svc.AgentQueue(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"returns": views})
	}
}
