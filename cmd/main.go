package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chargeService "github.com/tungahq/payments/charge/service"
	"github.com/tungahq/payments/cmd/api"
	"github.com/tungahq/payments/common"
	"github.com/tungahq/payments/framework/connection"
	ledgerService "github.com/tungahq/payments/ledger/service"
	"github.com/tungahq/payments/logger"
	"github.com/tungahq/payments/mailer"
	payoutService "github.com/tungahq/payments/payout/service"
	"github.com/tungahq/payments/renderer"
	reportingService "github.com/tungahq/payments/reporting/service"
	schedulerDomain "github.com/tungahq/payments/scheduler/domain"
	schedulerService "github.com/tungahq/payments/scheduler/service"
	"github.com/tungahq/payments/slack"
)

const (
	defaultAddr   = "0.0.0.0:8082"
	schedulerTick = time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Println("error: ", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	logging, err := logger.NewLogging(ctx)
	if err != nil {
		log.Printf("main: could not initialize logging. error %s", err)
		return err
	}

	conf, err := common.NewConfig(ctx)
	if err != nil {
		log.Printf("main: could not load configuration. error %s", err)
		return err
	}

	conn, err := connection.NewConnection(ctx, logging)
	if err != nil {
		log.Printf("main: could not initialize db connections. error %s", err)
		return err
	}

	docRenderer := renderer.NewHTTPRenderer(conf.Renderer.BaseURL, conf.Renderer.Timeout)
	sender := newSender(conf)
	notifier := newNotifier(conf)

	// =================
	// Start the background scheduler

	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()

	sched := newScheduler(logging, conn, conf, docRenderer, sender, notifier)

	go func() {
		if err := sched.Run(schedCtx, schedulerTick); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("main: scheduler stopped: %v", err)
		}
	}()

	// =================
	// Start API Service
	log.Print("started: initializing api support")

	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	a := api.NewAPI(shutdown, logging, conn, conf, docRenderer, sender, notifier)

	addr := getAddr()

	server := http.Server{
		Addr:    addr,
		Handler: a.Build(),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("listening on %s", addr)
		serverErrors <- server.ListenAndServe()
	}()

	// =================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("%s : starting server", err)

	case sig := <-shutdown:
		log.Printf("%v : start shutdown", sig)

		stopScheduler()

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		err := server.Shutdown(ctx)
		if err != nil {
			log.Printf("main : graceful shutdown did not complete")

			err = server.Close()
		}

		switch {
		case sig == syscall.SIGSTOP:
			return errors.New("integrity issue caused shutdown")
		case err != nil:
			return fmt.Errorf("could not stop server gracefully: %s", err)
		}
	}

	return nil
}

// newScheduler wires the periodic jobs to their services.
func newScheduler(
	logging *logger.Logging,
	conn *connection.Connection,
	conf *common.Config,
	docRenderer renderer.Renderer,
	sender mailer.ISender,
	notifier slack.Notifier,
) *schedulerService.Scheduler {
	loggerProvider := logging.Logger

	ledgerSvc := ledgerService.NewLedgerService(loggerProvider, conn, conf, docRenderer)
	chargeSvc := chargeService.NewChargeService(loggerProvider, conn, conf, docRenderer, sender, ledgerSvc)
	payoutSvc := payoutService.NewPayoutService(loggerProvider, conn, conf, notifier)
	reportingSvc := reportingService.NewReportingService(loggerProvider, conn, conf, docRenderer, notifier)

	sched := schedulerService.NewScheduler(loggerProvider, conn, conf, notifier)

	sched.Register(schedulerDomain.JobKindPayoutDispatch, func(ctx context.Context, _ json.RawMessage) error {
		return payoutSvc.Dispatch(ctx)
	})
	sched.Register(schedulerDomain.JobKindReminders, func(ctx context.Context, _ json.RawMessage) error {
		return chargeSvc.SendReminders(ctx)
	})
	sched.Register(schedulerDomain.JobKindLedgerSweep, func(ctx context.Context, _ json.RawMessage) error {
		return ledgerSvc.Sweep(ctx)
	})
	sched.Register(schedulerDomain.JobKindWeeklyReports, func(ctx context.Context, _ json.RawMessage) error {
		return reportingSvc.RunWeeklyReports(ctx)
	})

	return sched
}

func newSender(conf *common.Config) mailer.ISender {
	if common.IsLocalhost {
		return mailer.CowardMailer{}
	}

	return mailer.NewMailer(mailer.SendGridConfig{
		APIKey:    conf.Sendgrid.APIKey,
		FromEmail: conf.Sendgrid.FromEmail,
		FromName:  conf.Sendgrid.FromName,
	})
}

func newNotifier(conf *common.Config) slack.Notifier {
	if common.IsLocalhost || conf.SlackToken == "" {
		return slack.CowardNotifier{}
	}

	return slack.NewClient(conf.SlackToken, conf.OperatorChannel)
}

func getAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		return defaultAddr
	}

	return fmt.Sprintf(":%s", port)
}
