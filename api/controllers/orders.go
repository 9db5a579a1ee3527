package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/api/middleware"
	"github.com/arjunkapur/swiftkart-backend/api/responses"
	"github.com/arjunkapur/swiftkart-backend/api/validators"
	"github.com/arjunkapur/swiftkart-backend/internal/delivery"
	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/pkg/db/models"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
	"github.com/arjunkapur/swiftkart-backend/pkg/pagination"
)

type createOrderRequest struct {
	SellerID      string  `json:"seller_id" validate:"required,uuid"`
	AmountPaise   int64   `json:"amount_paise" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=prepaid cod"`
	DeliveryNotes *string `json:"delivery_notes,omitempty" validate:"omitempty,max=500"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type assignAgentRequest struct {
	AgentID  string `json:"agent_id" validate:"required,uuid"`
	Reassign bool   `json:"reassign,omitempty"`
}

type orderView struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountPaise   int64               `json:"amount_paise"`
	IsPaid        bool                `json:"is_paid"`
	DeliveryNotes *string             `json:"delivery_notes,omitempty"`
	CancelReason  *string             `json:"cancel_reason,omitempty"`
	AgentStatus   *enums.AgentStatus  `json:"agent_status,omitempty"`
}

func toOrderView(order *models.Order) orderView {
	view := orderView{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		AmountPaise:   order.AmountPaise,
		IsPaid:        order.IsPaid,
		DeliveryNotes: order.DeliveryNotes,
		CancelReason:  order.CancelReason,
	}
	if order.Assignment != nil {
		status := order.Assignment.AgentStatus()
		view.AgentStatus = &status
	}
	return view
}

func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers create orders"))
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, _ := uuid.Parse(body.SellerID)
		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.Create(r.Context(), orders.CreateInput{
			BuyerID:       actor.UserID,
			SellerID:      sellerID,
			AmountPaise:   body.AmountPaise,
			PaymentMethod: method,
			DeliveryNotes: body.DeliveryNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderView(order))
	}
}

func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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
		order, err := svc.Get(r.Context(), orderID, actor.UserID, actor.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderView(order))
	}
}

func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: validators.QueryString(r, "cursor"),
		}
		filters, err := parseOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var list *orders.OrderList
		switch actor.Role {
		case enums.ActorRoleBuyer:
			list, err = svc.ListForBuyer(r.Context(), actor.UserID, params, filters)
		case enums.ActorRoleSeller:
			list, err = svc.ListForSeller(r.Context(), actor.UserID, params, filters)
		default:
			err = pkgerrors.New(pkgerrors.CodeForbidden, "listing requires a buyer or seller role")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseOrderFilters(r *http.Request) (orders.Filters, error) {
	var filters orders.Filters
	if raw := validators.QueryString(r, "status"); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := validators.QueryString(r, "payment_method"); raw != "" {
		method, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method filter")
		}
		filters.PaymentMethod = &method
	}
	from, err := validators.ParseQueryTime(r, "date_from")
	if err != nil {
		return filters, err
	}
	filters.DateFrom = from
	to, err := validators.ParseQueryTime(r, "date_to")
	if err != nil {
		return filters, err
	}
	filters.DateTo = to
	return filters, nil
}

func OrderAccept(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(logg, func(r *http.Request, orderID uuid.UUID, actor middleware.Actor) error {
		return svc.Accept(r.Context(), orders.AcceptInput{
			OrderID:     orderID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		})
	})
}

func OrderPickupReady(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(logg, func(r *http.Request, orderID uuid.UUID, actor middleware.Actor) error {
		return svc.MarkPickupReady(r.Context(), orders.PickupReadyInput{
			OrderID:     orderID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		})
	})
}

func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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
		var body cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:     orderID,
			Reason:      body.Reason,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

func OrderAssignAgent(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
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
		var body assignAgentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agentID, _ := uuid.Parse(body.AgentID)

		assignment, err := svc.Assign(r.Context(), delivery.AssignInput{
			OrderID:     orderID,
			AgentID:     agentID,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Reassign:    body.Reassign,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"assignment_id": assignment.ID,
			"order_id":      assignment.OrderID,
			"agent_id":      assignment.AgentID,
		})
	}
}

func orderAction(logg *logger.Logger, fn func(r *http.Request, orderID uuid.UUID, actor middleware.Actor) error) http.HandlerFunc {
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
		if err := fn(r, orderID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
