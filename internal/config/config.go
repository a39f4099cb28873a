package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	applog "gastos/internal/log"
	"gastos/internal/reminder"
)

type Config struct {
	// Telegram
	TelegramToken       string
	TelegramAPIEndpoint string
	TelegramTimeout     time.Duration

	// Static bot configuration (taxonomy, presets, modes)
	BotConfigPath string

	// Store backend
	DataBackend   string
	DataDirectory string

	// Google Sheets
	GoogleSpreadsheetID     string
	GoogleCredentialsJSON   string
	GoogleCredentialsFile   string
	GoogleCredentialsBase64 string
	SheetsTimeout           time.Duration
	SheetsRatePerMinute     int

	// Table names
	ExpensesSheet string
	IncomesSheet  string
	SavingsSheet  string
	BudgetSheet   string

	// Session backend
	SessionBackend string
	SQLiteDBPath   string

	// Time and reminders
	Timezone            string
	ReminderTimes       string
	ReminderInterval    time.Duration
	ReminderCatchUp     time.Duration
	ConversationTimeout time.Duration
	CacheSweepInterval  time.Duration
	ChatRatePerMinute   int
	ChatBurst           int

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string

	// Operations
	MetricsPort string
	LogLevel    string
	LogFormat   string
}

func Load() *Config {
	return &Config{
		TelegramToken:       getEnvAny([]string{"TELEGRAM_BOT_TOKEN", "BOT_TOKEN"}, ""),
		TelegramAPIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
		TelegramTimeout:     getEnvDuration("TELEGRAM_REQUEST_TIMEOUT", 15*time.Second),

		BotConfigPath: getEnv("BOT_CONFIG_PATH", "./configs/bot.yaml"),

		DataBackend:   getEnv("DATA_BACKEND", "sheets"),
		DataDirectory: getEnv("DATA_DIR", "./data"),

		GoogleSpreadsheetID:     getEnvAny([]string{"GOOGLE_SPREADSHEET_ID", "SPREADSHEET_ID"}, ""),
		GoogleCredentialsJSON:   getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleCredentialsFile:   getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleCredentialsBase64: getEnv("GOOGLE_CREDENTIALS", ""),
		SheetsTimeout:           getEnvDuration("SHEETS_TIMEOUT", 15*time.Second),
		SheetsRatePerMinute:     getEnvInt("SHEETS_RATE_PER_MINUTE", 60),

		ExpensesSheet: getEnv("SHEET_EXPENSES", "Gastos"),
		IncomesSheet:  getEnv("SHEET_INCOMES", "Ingresos"),
		SavingsSheet:  getEnv("SHEET_SAVINGS", "Ahorros"),
		BudgetSheet:   getEnv("SHEET_BUDGET", "PresupuestoBot"),

		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/gastos.db"),

		Timezone:            getEnv("TIMEZONE", "America/Argentina/Buenos_Aires"),
		ReminderTimes:       getEnv("REMINDER_TIMES", "13:00,22:00"),
		ReminderInterval:    getEnvDuration("REMINDER_INTERVAL", 30*time.Second),
		ReminderCatchUp:     getEnvDuration("REMINDER_CATCH_UP", time.Hour),
		ConversationTimeout: getEnvDuration("CONVERSATION_TIMEOUT", 30*time.Minute),
		CacheSweepInterval:  getEnvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute),
		ChatRatePerMinute:   getEnvInt("CHAT_RATE_PER_MINUTE", 30),
		ChatBurst:           getEnvInt("CHAT_BURST", 10),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gastos.ledger"),

		MetricsPort: getEnv("METRICS_PORT", "9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.TelegramToken) == "" {
		errors = append(errors, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramTimeout < time.Second || c.TelegramTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid telegram request timeout %v: must be between 1s and 1m", c.TelegramTimeout))
	}
	if c.BotConfigPath == "" {
		errors = append(errors, "BOT_CONFIG_PATH cannot be empty")
	} else if _, err := os.Stat(c.BotConfigPath); err != nil {
		errors = append(errors, fmt.Sprintf("bot config file not readable '%s': %v", c.BotConfigPath, err))
	}

	validData := []string{"sheets", "memory"}
	if !slices.Contains(validData, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validData))
	}
	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleCredentialsJSON == "" && c.GoogleCredentialsFile == "" && c.GoogleCredentialsBase64 == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_CREDENTIALS must be provided for sheets backend")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}
	if c.SheetsTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sheets timeout %v: must be at least 1 second", c.SheetsTimeout))
	}
	if c.SheetsRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid sheets rate %d: must be at least 1 per minute", c.SheetsRatePerMinute))
	}

	for name, table := range map[string]string{
		"SHEET_EXPENSES": c.ExpensesSheet,
		"SHEET_INCOMES":  c.IncomesSheet,
		"SHEET_SAVINGS":  c.SavingsSheet,
		"SHEET_BUDGET":   c.BudgetSheet,
	} {
		if strings.TrimSpace(table) == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", name))
		}
	}

	validSessions := []string{"memory", "sqlite"}
	if !slices.Contains(validSessions, c.SessionBackend) {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validSessions))
	}
	if c.SessionBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite session backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if _, err := reminder.ParseTimes(c.ReminderTimes); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reminder times '%s': %v", c.ReminderTimes, err))
	}
	if c.ReminderInterval < time.Second || c.ReminderInterval > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reminder interval %v: must be between 1s and 5m", c.ReminderInterval))
	}
	if c.ReminderCatchUp <= c.ReminderInterval {
		errors = append(errors, fmt.Sprintf("invalid reminder catch-up %v: must be longer than the interval %v", c.ReminderCatchUp, c.ReminderInterval))
	}
	if c.ReminderCatchUp >= 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder catch-up %v: must be shorter than a day", c.ReminderCatchUp))
	}
	if c.ConversationTimeout < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid conversation timeout %v: must be at least 1 minute", c.ConversationTimeout))
	}
	if c.CacheSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache sweep interval %v: must be at least 1 second", c.CacheSweepInterval))
	}
	if c.ChatRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid chat rate %d: must be at least 1 per minute", c.ChatRatePerMinute))
	}
	if c.ChatBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid chat burst %d: must be at least 1", c.ChatBurst))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// An empty metrics port disables the server.
	if c.MetricsPort != "" {
		if port, err := strconv.Atoi(c.MetricsPort); err != nil {
			errors = append(errors, fmt.Sprintf("invalid metrics port '%s': must be a number", c.MetricsPort))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid metrics port %d: must be between 1 and 65535", port))
		}
	}
	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the configured time zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Slots returns the reminder slots. Call after Validate.
func (c *Config) Slots() []reminder.Slot {
	slots, err := reminder.ParseTimes(c.ReminderTimes)
	if err != nil {
		return reminder.DefaultSlots()
	}
	return slots
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAny returns the first key that is set.
func getEnvAny(keys []string, defaultValue string) string {
	for _, k := range keys {
		if value := os.Getenv(k); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
