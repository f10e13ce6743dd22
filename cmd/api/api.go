package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	chargeHandlers "github.com/tungahq/payments/charge/handlers"
	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	"github.com/tungahq/payments/framework/mid"
	"github.com/tungahq/payments/framework/web"
	invoicingHandlers "github.com/tungahq/payments/invoicing/handlers"
	ledgerHandlers "github.com/tungahq/payments/ledger/handlers"
	ledgerService "github.com/tungahq/payments/ledger/service"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/mailer"
	paymentHandlers "github.com/tungahq/payments/payment/handlers"
	payoutHandlers "github.com/tungahq/payments/payout/handlers"
	"github.com/tungahq/payments/renderer"
	reportingHandlers "github.com/tungahq/payments/reporting/handlers"
	"github.com/tungahq/payments/slack"
)

// API constructs the payment orchestrator's http surface.
type API struct {
	shutdown chan os.Signal
	log      *logger.Logging
	conn     *connection.Connection
	conf     *common.Config
	renderer renderer.Renderer
	sender   mailer.ISender
	notifier slack.Notifier
}

func NewAPI(
	shutdown chan os.Signal,
	logging *logger.Logging,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
	sender mailer.ISender,
	notifier slack.Notifier,
) *API {
	return &API{
		shutdown: shutdown,
		log:      logging,
		conn:     conn,
		conf:     conf,
		renderer: docRenderer,
		sender:   sender,
		notifier: notifier,
	}
}

// Build mounts every route. Admin routes sit behind the gateway identity
// headers; the two rail hooks authenticate by signature and query token
// instead and stay outside the identity middleware.
func (api *API) Build() *web.App {
	loggerProvider := api.log.Logger

	app := web.NewApp(api.shutdown, api.conn,
		mid.Logger(),
		mid.Errors(),
		mid.Panics(),
	)

	ledgerSvc := ledgerService.NewLedgerService(loggerProvider, api.conn, api.conf, api.renderer)

	invoicing := invoicingHandlers.NewInvoicing(loggerProvider, api.conn, api.conf, api.renderer)
	charge := chargeHandlers.NewCharge(loggerProvider, api.conn, api.conf, api.renderer, api.sender, ledgerSvc)
	payout := payoutHandlers.NewPayout(loggerProvider, api.conn, api.conf, api.notifier)
	payments := paymentHandlers.NewPayments(loggerProvider, api.conn)
	ledger := ledgerHandlers.NewLedger(loggerProvider, api.conn, api.conf, api.renderer)
	reporting := reportingHandlers.NewReporting(loggerProvider, api.conn, api.conf, api.renderer, api.notifier)

	app.Get("/health", func(ctx *gin.Context) error {
		return web.Respond(ctx, map[string]string{"status": "ok"}, http.StatusOK)
	})

	invoices := web.NewGroup(app, "/invoices", mid.Identity(), mid.AssertAdmin())
	invoices.Post("", invoicing.CreateInvoiceHandler)
	invoices.Post("/bulk", invoicing.BulkCreateHandler)
	invoices.Put("/bulk/:batchRef", invoicing.ReplaceBatchHandler)
	invoices.Delete("/bulk/:batchRef", invoicing.DeleteBatchHandler)
	invoices.Post("/generate/:projectID", invoicing.GenerateBatchHandler)
	invoices.Get("/:invoiceID/download", invoicing.DownloadHandler)
	invoices.Post("/:invoiceID/pay", charge.PayHandler)
	invoices.Post("/:invoiceID/send", charge.SendInvoiceHandler)
	invoices.Post("/:invoiceID/void", charge.VoidHandler)
	invoices.Post("/:invoiceID/void-payout", payout.VoidHandler)

	paymentsGroup := web.NewGroup(app, "/payments", mid.Identity(), mid.AssertAdmin())
	paymentsGroup.Get("", payments.ListHandler)
	paymentsGroup.Get("/:paymentID", payments.GetHandler)
	paymentsGroup.Post("/:paymentID/retry", payout.RetryHandler)

	hooks := web.NewGroup(app, "/hook")
	hooks.Post("/stripe", charge.StripeWebhookHandler)
	hooks.Get("/payoneer", payout.IPCNHandler)

	tasks := web.NewGroup(app, "/tasks", mid.Identity(), mid.AssertAdmin())
	tasks.Post("/reminders", charge.RemindersHandler)
	tasks.Post("/payouts/dispatch", payout.DispatchHandler)
	tasks.Post("/ledger/sweep", ledger.SweepHandler)
	tasks.Post("/reports/weekly", reporting.WeeklyHandler)
	tasks.Post("/reports/payment", reporting.PaymentReportHandler)
	tasks.Post("/reports/project", reporting.ProjectReportHandler)

	return app
}
