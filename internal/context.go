package internal

import (
	"time"

	"github.com/gin-gonic/gin"
)

// CtxDataKey is the gin context key the per-request state lives under.
const CtxDataKey = "app-context"

// Data is the per-request state shared along the middleware chain.
type Data struct {
	TraceID    string
	StatusCode int
	Now        time.Time
}

// ContextWithData stores the request state on the gin.Context.
func ContextWithData(ctx *gin.Context, data *Data) {
	ctx.Set(CtxDataKey, data)
}

// DataFromContext retrieves the request state from the gin.Context.
func DataFromContext(ctx *gin.Context) (*Data, bool) {
	v, ok := ctx.Value(CtxDataKey).(*Data)
	return v, ok
}
