package mid

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/web"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Identity extracts the authenticated principal set by the API gateway and
// stores it on the gin context under the common context keys.
func Identity() web.Middleware {
	f := func(before web.Handler) web.Handler {
		h := func(ctx *gin.Context) error {
			userID := ctx.GetHeader("X-Tunga-User-Id")
			email := ctx.GetHeader("X-Tunga-Email")
			admin := ctx.GetHeader("X-Tunga-Admin") == "true"

			if userID == "" {
				return web.NewRequestError(ErrUnauthorized, http.StatusUnauthorized)
			}

			ctx.Set(common.CtxKeys.UserID, userID)
			ctx.Set(common.CtxKeys.Email, email)
			ctx.Set(common.CtxKeys.Admin, admin)

			return before(ctx)
		}

		return h
	}

	return f
}

// AssertAdmin rejects requests whose principal is not an admin.
func AssertAdmin() web.Middleware {
	f := func(before web.Handler) web.Handler {
		h := func(ctx *gin.Context) error {
			if !ctx.GetBool(common.CtxKeys.Admin) {
				return web.NewRequestError(ErrForbidden, http.StatusForbidden)
			}

			return before(ctx)
		}

		return h
	}

	return f
}
