package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/renthouse/ms-go-payments/app/controller"
	"github.com/renthouse/ms-go-payments/app/gateway"
	"github.com/renthouse/ms-go-payments/app/repository"
	"github.com/renthouse/ms-go-payments/app/service"
	"github.com/renthouse/ms-go-payments/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server exposing the payment API and the gateway callback endpoints.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	paymentController := controller.NewPaymentController(paymentService)
	e := setupHTTPServer(paymentController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(paymentController *controller.PaymentController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", paymentController.Health)

	payments := e.Group("/payments")
	payments.POST("", paymentController.CreatePayment)
	payments.GET("", paymentController.ListPayments)
	payments.GET("/:transactionCode", paymentController.GetPayment)
	payments.POST("/:transactionCode/cancel", paymentController.CancelPayment)
	payments.POST("/:transactionCode/retry-url", paymentController.RetryPaymentURL)

	// Gateway callbacks. The sandbox sends both as GET; production IPN
	// may arrive as a form POST.
	callbacks := e.Group("/payments/vnpay")
	callbacks.GET("/return", paymentController.HandleReturn)
	callbacks.GET("/ipn", paymentController.HandleIPN)
	callbacks.POST("/ipn", paymentController.HandleIPN)

	return e
}

func mustCreatePaymentService() (*config.Config, *service.PaymentService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	vnpayGateway, err := gateway.NewVNPayGateway(gateway.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		BaseURL:    cfg.VNPay.BaseURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
		Locale:     cfg.VNPay.Locale,
		OrderType:  cfg.VNPay.OrderType,
	})
	if err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to initialize payment gateway")
	}

	txnRepo := repository.NewTransactionRepository(db)
	eventRepo := repository.NewTransactionEventRepository(db)
	callbackRepo := repository.NewCallbackRecordRepository(db)

	paymentService := service.NewPaymentService(
		txnRepo,
		eventRepo,
		callbackRepo,
		vnpayGateway,
		cfg.Payments,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, paymentService, cleanup
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
