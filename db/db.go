package db

import (
	"flag"
	"os"

	"github.com/perennialpress/newsletter-backend/models"
)

// Database interface: what the subscription workflow needs from storage.
// The registration inserts run inside a caller-managed transaction; the
// confirmation operations are plain point queries.
type Database interface {
	// Opens the transaction scoping a subscriber insert and its token insert.
	Begin() (models.Txn, error)
	// Inserts one pending subscriber row, returning the generated id.
	InsertSubscriber(tx models.Txn, subscriber models.NewSubscriber) (string, error)
	// Inserts one confirmation token row for a subscriber.
	InsertToken(tx models.Txn, subscriberID string, token string) error
	// Point lookup of the subscriber a token belongs to. The bool reports
	// whether the token is known at all.
	GetSubscriberIDByToken(token string) (string, bool, error)
	// Unconditionally flips a subscriber to confirmed. Idempotent.
	MarkConfirmed(subscriberID string) error
	// Retrieves a single subscriber row.
	GetSubscriber(subscriberID string) (models.Subscriber, error)
	ClearTables() error
}

// Config is a configuration struct for a Database.
type Config struct {
	Port       string
	DbHost     string
	DbName     string
	DbUsername string
	DbPass     string
}

// Default configuration values. Can be overwritten by env vars of the same name.
var configDefaults = map[string]string{
	"PORT":         "8080",
	"DB_HOST":      "localhost",
	"DB_NAME":      "newsletter",
	"DB_USERNAME":  "postgres",
	"DB_PASSWORD":  "postgres",
	"TEST_DB_NAME": "newsletter_test",
}

func getEnvOrDefault(varName string) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		envVar = configDefaults[varName]
	}
	return envVar
}

// LoadEnvironmentVariables loads relevant environment variables into a
// Config object.
func LoadEnvironmentVariables() (Config, error) {
	config := Config{
		Port:       getEnvOrDefault("PORT"),
		DbHost:     getEnvOrDefault("DB_HOST"),
		DbName:     getEnvOrDefault("DB_NAME"),
		DbUsername: getEnvOrDefault("DB_USERNAME"),
		DbPass:     getEnvOrDefault("DB_PASSWORD"),
	}
	if flag.Lookup("test.v") != nil {
		// Avoid accidentally wiping the default db during tests.
		config.DbName = getEnvOrDefault("TEST_DB_NAME")
	}
	return config, nil
}
