package db

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"

	// Imports postgresql driver for database/sql
	_ "github.com/lib/pq"
	"gopkg.in/gorp.v2"

	"github.com/perennialpress/newsletter-backend/models"
)

// SQLDatabase is a Database interface backed by postgresql.
type SQLDatabase struct {
	cfg  Config // Configuration to define the DB connection.
	conn *gorp.DbMap
}

// subscriberRow mirrors the subscriptions table. Note that email carries no
// uniqueness constraint: resubmission of the same address creates a second
// pending row.
type subscriberRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	SubscribedAt time.Time `db:"subscribed_at"`
	Status       string    `db:"status"`
}

// tokenRow mirrors the subscription_tokens table. Each token maps to at
// most one subscriber; a subscriber may have several tokens outstanding.
type tokenRow struct {
	Token        string `db:"subscription_token"`
	SubscriberID string `db:"subscriber_id"`
}

func getConnectionString(cfg Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.PathEscape(cfg.DbUsername),
		url.PathEscape(cfg.DbPass),
		url.PathEscape(cfg.DbHost),
		url.PathEscape(cfg.DbName))
}

// InitSQLDatabase creates a DB connection based on information in a Config,
// and returns a pointer to the resulting SQLDatabase object. The connection
// is established lazily; use Ping to verify it.
func InitSQLDatabase(cfg Config) (*SQLDatabase, error) {
	connectionString := getConnectionString(cfg)
	log.Printf("Connecting to Postgres DB ...\n")
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}
	dbmap := &gorp.DbMap{Db: conn, Dialect: gorp.PostgresDialect{}}
	dbmap.AddTableWithName(subscriberRow{}, "subscriptions").SetKeys(false, "ID")
	dbmap.AddTableWithName(tokenRow{}, "subscription_tokens").SetKeys(false, "Token")
	return &SQLDatabase{cfg: cfg, conn: dbmap}, nil
}

// Ping verifies that the database is reachable.
func (db *SQLDatabase) Ping() error {
	return db.conn.Db.Ping()
}

// Begin opens the transaction that scopes a subscriber insert together with
// its token insert.
func (db *SQLDatabase) Begin() (models.Txn, error) {
	return db.conn.Begin()
}

// InsertSubscriber inserts one subscriber row in pending state with the
// current timestamp, returning the generated id.
func (db *SQLDatabase) InsertSubscriber(tx models.Txn, subscriber models.NewSubscriber) (string, error) {
	gtx, ok := tx.(*gorp.Transaction)
	if !ok {
		return "", fmt.Errorf("transaction does not belong to this database")
	}
	row := subscriberRow{
		ID:           uuid.New().String(),
		Email:        subscriber.Email,
		Name:         subscriber.Name,
		SubscribedAt: time.Now().UTC(),
		Status:       string(models.StatusPending),
	}
	if err := gtx.Insert(&row); err != nil {
		return "", err
	}
	return row.ID, nil
}

// InsertToken inserts one confirmation token row for a subscriber, within
// the same transaction as the subscriber insert.
func (db *SQLDatabase) InsertToken(tx models.Txn, subscriberID string, token string) error {
	gtx, ok := tx.(*gorp.Transaction)
	if !ok {
		return fmt.Errorf("transaction does not belong to this database")
	}
	return gtx.Insert(&tokenRow{Token: token, SubscriberID: subscriberID})
}

// GetSubscriberIDByToken retrieves the subscriber a confirmation token was
// issued for. Returns false with no error if the token is unknown.
func (db *SQLDatabase) GetSubscriberIDByToken(token string) (string, bool, error) {
	var subscriberID string
	err := db.conn.SelectOne(&subscriberID,
		"SELECT subscriber_id FROM subscription_tokens WHERE subscription_token=$1", token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return subscriberID, true, nil
}

// MarkConfirmed unconditionally sets a subscriber's status to confirmed.
// Repeating the call on an already-confirmed subscriber is a no-op.
func (db *SQLDatabase) MarkConfirmed(subscriberID string) error {
	_, err := db.conn.Exec("UPDATE subscriptions SET status=$1 WHERE id=$2",
		string(models.StatusConfirmed), subscriberID)
	return err
}

// GetSubscriber retrieves a single subscriber row.
func (db *SQLDatabase) GetSubscriber(subscriberID string) (models.Subscriber, error) {
	obj, err := db.conn.Get(subscriberRow{}, subscriberID)
	if err != nil {
		return models.Subscriber{}, err
	}
	if obj == nil {
		return models.Subscriber{}, fmt.Errorf("no subscriber with id %s", subscriberID)
	}
	row := obj.(*subscriberRow)
	return models.Subscriber{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		SubscribedAt: row.SubscribedAt,
		Status:       models.SubscriberStatus(row.Status),
	}, nil
}

func tryExec(database *SQLDatabase, commands []string) error {
	for _, command := range commands {
		if _, err := database.conn.Exec(command); err != nil {
			return fmt.Errorf("command failed: %s\nwith error: %v",
				command, err.Error())
		}
	}
	return nil
}

// ClearTables nukes all the tables. ** Should only be used during testing **
func (db *SQLDatabase) ClearTables() error {
	return tryExec(db, []string{
		"DELETE FROM subscription_tokens",
		"DELETE FROM subscriptions",
	})
}
