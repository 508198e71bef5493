package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/perennialpress/newsletter-backend/models"
)

// MemDatabase is a straw-man in-memory database (for testing!). Its
// transactions stage writes and publish them only on Commit, so the
// registration atomicity behaves like the real thing.
type MemDatabase struct {
	cfg         Config
	mu          sync.Mutex
	subscribers map[string]models.Subscriber
	tokens      map[string]string // token -> subscriber id
}

// InitMemDatabase returns a fresh, empty MemDatabase.
func InitMemDatabase(cfg Config) *MemDatabase {
	return &MemDatabase{
		cfg:         cfg,
		subscribers: make(map[string]models.Subscriber),
		tokens:      make(map[string]string),
	}
}

type memTxn struct {
	db          *MemDatabase
	subscribers []models.Subscriber
	tokens      map[string]string
	done        bool
}

func (t *memTxn) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.done = true
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for _, subscriber := range t.subscribers {
		t.db.subscribers[subscriber.ID] = subscriber
	}
	for token, subscriberID := range t.tokens {
		t.db.tokens[token] = subscriberID
	}
	return nil
}

func (t *memTxn) Rollback() error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.done = true
	t.subscribers = nil
	t.tokens = nil
	return nil
}

// Begin opens a staging transaction over the in-memory maps.
func (db *MemDatabase) Begin() (models.Txn, error) {
	return &memTxn{db: db, tokens: make(map[string]string)}, nil
}

// InsertSubscriber stages one pending subscriber row on the transaction.
func (db *MemDatabase) InsertSubscriber(tx models.Txn, subscriber models.NewSubscriber) (string, error) {
	mtx, ok := tx.(*memTxn)
	if !ok || mtx.done {
		return "", fmt.Errorf("transaction does not belong to this database")
	}
	row := models.Subscriber{
		ID:           uuid.New().String(),
		Email:        subscriber.Email,
		Name:         subscriber.Name,
		SubscribedAt: time.Now().UTC(),
		Status:       models.StatusPending,
	}
	mtx.subscribers = append(mtx.subscribers, row)
	return row.ID, nil
}

// InsertToken stages one confirmation token row on the transaction.
func (db *MemDatabase) InsertToken(tx models.Txn, subscriberID string, token string) error {
	mtx, ok := tx.(*memTxn)
	if !ok || mtx.done {
		return fmt.Errorf("transaction does not belong to this database")
	}
	mtx.tokens[token] = subscriberID
	return nil
}

// GetSubscriberIDByToken resolves a committed token to its subscriber.
func (db *MemDatabase) GetSubscriberIDByToken(token string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscriberID, ok := db.tokens[token]
	return subscriberID, ok, nil
}

// MarkConfirmed flips a subscriber to confirmed. Idempotent.
func (db *MemDatabase) MarkConfirmed(subscriberID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscriber, ok := db.subscribers[subscriberID]
	if !ok {
		return fmt.Errorf("no subscriber with id %s", subscriberID)
	}
	subscriber.Status = models.StatusConfirmed
	db.subscribers[subscriberID] = subscriber
	return nil
}

// GetSubscriber retrieves a single committed subscriber row.
func (db *MemDatabase) GetSubscriber(subscriberID string) (models.Subscriber, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscriber, ok := db.subscribers[subscriberID]
	if !ok {
		return models.Subscriber{}, fmt.Errorf("no subscriber with id %s", subscriberID)
	}
	return subscriber, nil
}

// GetSubscribers lists every committed subscriber row, for test inspection.
func (db *MemDatabase) GetSubscribers() ([]models.Subscriber, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscribers := make([]models.Subscriber, 0, len(db.subscribers))
	for _, subscriber := range db.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	return subscribers, nil
}

// ClearTables resets the in-memory maps.
func (db *MemDatabase) ClearTables() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.subscribers = make(map[string]models.Subscriber)
	db.tokens = make(map[string]string)
	return nil
}
