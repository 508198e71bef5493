package db_test

import (
	"log"
	"os"
	"testing"

	"github.com/joho/godotenv"

	"github.com/perennialpress/newsletter-backend/db"
	"github.com/perennialpress/newsletter-backend/models"
)

// Global database object for tests. Left nil when no local Postgres is
// reachable, in which case the tests below skip themselves.
var database *db.SQLDatabase

func TestMain(m *testing.M) {
	godotenv.Overload("../.env.test")
	cfg, err := db.LoadEnvironmentVariables()
	if err != nil {
		log.Fatal(err)
	}
	sqldb, err := db.InitSQLDatabase(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := sqldb.Ping(); err == nil {
		database = sqldb
	} else {
		log.Printf("test database not reachable, skipping SQL tests: %v", err)
	}
	code := m.Run()
	if database != nil {
		database.ClearTables()
	}
	os.Exit(code)
}

func requireDatabase(t *testing.T) {
	if database == nil {
		t.Skip("requires a local Postgres test database")
	}
	database.ClearTables()
}

func register(t *testing.T, subscriber models.NewSubscriber) (string, string) {
	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	subscriberID, err := database.InsertSubscriber(tx, subscriber)
	if err != nil {
		tx.Rollback()
		t.Fatalf("InsertSubscriber failed: %v", err)
	}
	token := models.GenerateToken()
	if err := database.InsertToken(tx, subscriberID, token); err != nil {
		tx.Rollback()
		t.Fatalf("InsertToken failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return subscriberID, token
}

func TestRegistrationCommitsBothRows(t *testing.T) {
	requireDatabase(t)

	subscriberID, token := register(t, models.NewSubscriber{
		Name:  "le guin",
		Email: "ursula_le_guin@gmail.com",
	})
	subscriber, err := database.GetSubscriber(subscriberID)
	if err != nil {
		t.Fatalf("GetSubscriber failed: %v", err)
	}
	if subscriber.Status != models.StatusPending {
		t.Errorf("fresh subscriber should be pending, got %s", subscriber.Status)
	}
	if subscriber.Name != "le guin" || subscriber.Email != "ursula_le_guin@gmail.com" {
		t.Errorf("stored subscriber holds wrong fields: %+v", subscriber)
	}
	id, found, err := database.GetSubscriberIDByToken(token)
	if err != nil || !found || id != subscriberID {
		t.Errorf("token should resolve to the committed subscriber, got %q/%v/%v", id, found, err)
	}
}

func TestRollbackLeavesNoRows(t *testing.T) {
	requireDatabase(t)

	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	subscriberID, err := database.InsertSubscriber(tx, models.NewSubscriber{Name: "n", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("InsertSubscriber failed: %v", err)
	}
	token := models.GenerateToken()
	if err := database.InsertToken(tx, subscriberID, token); err != nil {
		t.Fatalf("InsertToken failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	if _, err := database.GetSubscriber(subscriberID); err == nil {
		t.Errorf("subscriber row should not survive a rollback")
	}
	if _, found, _ := database.GetSubscriberIDByToken(token); found {
		t.Errorf("token row should not survive a rollback")
	}
}

func TestMarkConfirmedIsIdempotent(t *testing.T) {
	requireDatabase(t)

	subscriberID, _ := register(t, models.NewSubscriber{Name: "n", Email: "a@b.com"})
	for i := 0; i < 2; i++ {
		if err := database.MarkConfirmed(subscriberID); err != nil {
			t.Fatalf("MarkConfirmed attempt %d failed: %v", i+1, err)
		}
		subscriber, err := database.GetSubscriber(subscriberID)
		if err != nil {
			t.Fatalf("GetSubscriber failed: %v", err)
		}
		if subscriber.Status != models.StatusConfirmed {
			t.Errorf("subscriber should be confirmed after attempt %d", i+1)
		}
	}
}

func TestUnknownTokenLookup(t *testing.T) {
	requireDatabase(t)

	_, found, err := database.GetSubscriberIDByToken(models.GenerateToken())
	if err != nil {
		t.Fatalf("lookup of an unknown token should not error: %v", err)
	}
	if found {
		t.Errorf("an unissued token should not resolve")
	}
}

func TestDuplicateEmailsAllowed(t *testing.T) {
	requireDatabase(t)

	// No uniqueness constraint on email: a resubmission after a failed
	// delivery creates a second pending row.
	first, _ := register(t, models.NewSubscriber{Name: "n", Email: "same@example.com"})
	second, _ := register(t, models.NewSubscriber{Name: "n", Email: "same@example.com"})
	if first == second {
		t.Fatalf("expected two distinct rows")
	}
	for _, id := range []string{first, second} {
		if _, err := database.GetSubscriber(id); err != nil {
			t.Errorf("row %s should exist: %v", id, err)
		}
	}
}
