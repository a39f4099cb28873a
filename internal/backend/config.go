package backend

import (
	"errors"
	"fmt"

	"gastos/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	sessionType := SessionType(appConfig.SessionBackend)
	if !sessionType.IsValid() {
		return Config{}, fmt.Errorf("invalid session backend in config: %s", appConfig.SessionBackend)
	}

	return Config{
		Type:        backendType,
		SessionType: sessionType,
		Tables: Tables{
			Expenses: appConfig.ExpensesSheet,
			Incomes:  appConfig.IncomesSheet,
			Savings:  appConfig.SavingsSheet,
			Budget:   appConfig.BudgetSheet,
		},

		GoogleSpreadsheetID:     appConfig.GoogleSpreadsheetID,
		GoogleCredentialsJSON:   appConfig.GoogleCredentialsJSON,
		GoogleCredentialsFile:   appConfig.GoogleCredentialsFile,
		GoogleCredentialsBase64: appConfig.GoogleCredentialsBase64,
		SheetsTimeout:           appConfig.SheetsTimeout,
		SheetsRatePerMinute:     appConfig.SheetsRatePerMinute,

		DataDirectory: appConfig.DataDirectory,
		SQLiteDBPath:  appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.SessionType.IsValid() {
		return fmt.Errorf("invalid session type: %s", c.SessionType)
	}
	if c.Tables.Expenses == "" || c.Tables.Incomes == "" || c.Tables.Savings == "" || c.Tables.Budget == "" {
		return errors.New("all table names are required")
	}

	if c.Type == SheetsBackend {
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleCredentialsJSON == "" && c.GoogleCredentialsFile == "" && c.GoogleCredentialsBase64 == "" {
			return errors.New("service account credentials are required for sheets backend")
		}
	}
	if c.SessionType == SQLiteSessions && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite sessions")
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		return errors.New("AMQP exchange is required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{SheetsBackend.String(), MemoryBackend.String()}
}
