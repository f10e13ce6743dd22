package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/framework/web"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/renderer"
	"github.com/tungahq/payments/reporting/service"
	"github.com/tungahq/payments/slack"
)

type Reporting struct {
	loggerProvider logger.Provider
	service        *service.ReportingService
}

func NewReporting(
	loggerProvider logger.Provider,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
	notifier slack.Notifier,
) *Reporting {
	return &Reporting{
		loggerProvider: loggerProvider,
		service:        service.NewReportingService(loggerProvider, conn, conf, docRenderer, notifier),
	}
}

// WeeklyHandler produces both weekly reports, normally invoked by the
// scheduler on Monday morning.
func (h *Reporting) WeeklyHandler(ctx *gin.Context) error {
	if err := h.service.RunWeeklyReports(ctx); err != nil {
		return web.NewRequestError(err, http.StatusInternalServerError)
	}

	return web.Respond(ctx, nil, http.StatusOK)
}

// PaymentReportHandler reruns only the payment report.
func (h *Reporting) PaymentReportHandler(ctx *gin.Context) error {
	if err := h.service.RunPaymentReport(ctx); err != nil {
		return web.NewRequestError(err, http.StatusInternalServerError)
	}

	return web.Respond(ctx, nil, http.StatusOK)
}

// ProjectReportHandler reruns only the project report.
func (h *Reporting) ProjectReportHandler(ctx *gin.Context) error {
	if err := h.service.RunProjectReport(ctx); err != nil {
		return web.NewRequestError(err, http.StatusInternalServerError)
	}

	return web.Respond(ctx, nil, http.StatusOK)
}
