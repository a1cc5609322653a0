package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/renthouse/ms-go-payments/app/service"
	"github.com/renthouse/ms-go-payments/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	workerMode bool
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run expiration-related commands",
}

var expirePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Mark non-terminal transactions past their deadline as expired",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_pending",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpireSweepInterval },
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunExpireSweepBatch(ctx)
			},
		)
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run owner-notification commands",
}

var notifyDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch pending owner notifications for completed transactions",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"notify_dispatch",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.NotifyDispatchInterval },
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunNotifyDispatchBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(notifyCmd)
	expireCmd.AddCommand(expirePendingCmd)
	notifyCmd.AddCommand(notifyDispatchCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.PaymentService, ctx context.Context) error,
) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), paymentService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(paymentService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	paymentService *service.PaymentService,
	fn func(s *service.PaymentService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(paymentService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(paymentService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
