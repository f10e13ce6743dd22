package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/framework/web"
	"github.com/tungahq/payments/ledger/service"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/renderer"
)

type Ledger struct {
	loggerProvider logger.Provider
	service        *service.LedgerService
}

func NewLedger(loggerProvider logger.Provider, conn *connection.Connection, conf *common.Config, docRenderer renderer.Renderer) *Ledger {
	return &Ledger{
		loggerProvider: loggerProvider,
		service:        service.NewLedgerService(loggerProvider, conn, conf, docRenderer),
	}
}

// SweepHandler re-books every paid invoice the trigger path missed,
// normally invoked by the scheduler.
func (h *Ledger) SweepHandler(ctx *gin.Context) error {
	if err := h.service.Sweep(ctx); err != nil {
		return web.NewRequestError(err, http.StatusInternalServerError)
	}

	return web.Respond(ctx, nil, http.StatusOK)
}
