package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/arjunkapur/swiftkart-backend/api/responses"
	"github.com/arjunkapur/swiftkart-backend/pkg/enums"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

const (
	userIDHeader    = "X-User-Id"
	actorRoleHeader = "X-Actor-Role"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

// Actor is the identity the upstream gateway authenticated.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// RequireActor rejects requests without a valid identity. Authentication
// itself happens upstream; this only trusts the forwarded headers.
func RequireActor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := uuid.Parse(r.Header.Get(userIDHeader))
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or invalid user identity"))
				return
			}
			role, err := enums.ParseActorRole(r.Header.Get(actorRoleHeader))
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or invalid actor role"))
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, ctxUserID, userID)
			ctx = context.WithValue(ctx, ctxRole, role)
			if logg != nil {
				ctx = logg.WithActor(ctx, userID.String(), role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the authenticated actor, or false when the
// middleware did not run.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	userID, ok := ctx.Value(ctxUserID).(uuid.UUID)
	if !ok {
		return Actor{}, false
	}
	role, ok := ctx.Value(ctxRole).(enums.ActorRole)
	if !ok {
		return Actor{}, false
	}
	return Actor{UserID: userID, Role: role}, true
}
