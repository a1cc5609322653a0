package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	VNPay    VNPayConfig
	Payments PaymentsConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	BaseURL    string
	ReturnURL  string
	IPNURL     string
	Locale     string
	OrderType  string
}

type PaymentsConfig struct {
	MinAmount           int64
	DescriptionMaxLen   int
	TransactionLifetime time.Duration
	URLRetryLimit       int32
	NotifyMaxAttempts   int32
	NotifyRetryInterval time.Duration
	NotifyHTTPTimeout   time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	ExpireSweepInterval    time.Duration
	NotifyDispatchInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}
	tmnCode := os.Getenv("VNPAY_TMN_CODE")
	if tmnCode == "" {
		return nil, errors.New("VNPAY_TMN_CODE environment variable is required")
	}
	hashSecret := os.Getenv("VNPAY_HASH_SECRET")
	if hashSecret == "" {
		return nil, errors.New("VNPAY_HASH_SECRET environment variable is required")
	}
	baseURL := os.Getenv("VNPAY_URL")
	if baseURL == "" {
		return nil, errors.New("VNPAY_URL environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payments-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		VNPay: VNPayConfig{
			TmnCode:    tmnCode,
			HashSecret: hashSecret,
			BaseURL:    baseURL,
			ReturnURL:  getEnv("VNPAY_RETURN_URL", ""),
			IPNURL:     getEnv("VNPAY_IPN_URL", ""),
			Locale:     getEnv("VNPAY_LOCALE", "vn"),
			OrderType:  getEnv("VNPAY_ORDER_TYPE", "other"),
		},
		Payments: PaymentsConfig{
			MinAmount:           int64(getIntEnv("PAYMENTS_MIN_AMOUNT", 10000)),
			DescriptionMaxLen:   getIntEnv("PAYMENTS_DESCRIPTION_MAX_LEN", 200),
			TransactionLifetime: getMinutesEnv("PAYMENTS_TRANSACTION_LIFETIME_MINUTES", 15*time.Minute),
			URLRetryLimit:       int32(getIntEnv("PAYMENTS_URL_RETRY_LIMIT", 3)),
			NotifyMaxAttempts:   int32(getIntEnv("PAYMENTS_NOTIFY_MAX_ATTEMPTS", 10)),
			NotifyRetryInterval: getMinutesEnv("PAYMENTS_NOTIFY_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			NotifyHTTPTimeout:   getSecondsEnv("PAYMENTS_NOTIFY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ExpireSweepInterval:    getMinutesEnv("PAYMENTS_EXPIRE_SWEEP_INTERVAL_MINUTES", time.Minute),
			NotifyDispatchInterval: getMinutesEnv("PAYMENTS_NOTIFY_DISPATCH_INTERVAL_MINUTES", time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
