package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/idna"
)

// SubscriberStatus represents the lifecycle state of a single subscriber.
type SubscriberStatus string

// Possible values for SubscriberStatus. A fresh row always starts out
// pending; confirmed is terminal.
const (
	StatusPending   SubscriberStatus = "pending_confirmation"
	StatusConfirmed SubscriberStatus = "confirmed"
)

// Subscriber mirrors a row of the subscriptions table.
type Subscriber struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Email        string           `json:"-"`
	SubscribedAt time.Time        `json:"subscribed_at"`
	Status       SubscriberStatus `json:"status"`
}

// NewSubscriber holds contact details that passed validation but have not
// been persisted yet.
type NewSubscriber struct {
	Name  string
	Email string
}

const maxNameLength = 256

// Characters we refuse in display names, mostly to keep markup and path
// separators out of stored text and outgoing mail.
const forbiddenNameCharacters = `/()"<>\{}`

// ParseSubscriberName validates a raw display name. The name must be
// non-empty after trimming, at most 256 characters, and free of forbidden
// characters and control code points. No normalization is applied; the
// string is stored as submitted.
func ParseSubscriberName(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("subscriber name cannot be empty")
	}
	if len([]rune(raw)) > maxNameLength {
		return "", fmt.Errorf("subscriber name cannot be longer than %d characters", maxNameLength)
	}
	for _, r := range raw {
		if unicode.IsControl(r) || strings.ContainsRune(forbiddenNameCharacters, r) {
			return "", fmt.Errorf("subscriber name contains forbidden character %q", r)
		}
	}
	return raw, nil
}

// ParseSubscriberEmail validates a raw email address: a bare addr-spec with
// no surrounding whitespace, whose domain labels survive an IDNA lookup
// conversion. No DNS or MX resolution happens here.
func ParseSubscriberEmail(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("subscriber email cannot be empty")
	}
	if strings.TrimSpace(raw) != raw {
		return "", fmt.Errorf("subscriber email cannot have surrounding whitespace")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", fmt.Errorf("%q is not a valid email address", raw)
	}
	domain := raw[strings.LastIndex(raw, "@")+1:]
	if _, err := idna.Lookup.ToASCII(domain); err != nil {
		return "", fmt.Errorf("email domain %q is invalid: %v", domain, err)
	}
	return raw, nil
}

// ParseNewSubscriber validates both submitted form fields into a
// NewSubscriber. Validation is pure; no I/O has happened when it fails.
func ParseNewSubscriber(rawName string, rawEmail string) (NewSubscriber, error) {
	name, err := ParseSubscriberName(rawName)
	if err != nil {
		return NewSubscriber{}, err
	}
	email, err := ParseSubscriberEmail(rawEmail)
	if err != nil {
		return NewSubscriber{}, err
	}
	return NewSubscriber{Name: name, Email: email}, nil
}

// Txn is the transactional scope shared by the registration inserts.
// Exactly one of Commit or Rollback is called on every code path.
type Txn interface {
	Commit() error
	Rollback() error
}

// registrationStore is the interface for persisting a new subscriber
// together with its confirmation token.
type registrationStore interface {
	Begin() (Txn, error)
	InsertSubscriber(tx Txn, subscriber NewSubscriber) (string, error)
	InsertToken(tx Txn, subscriberID string, token string) error
}

// Register stores the subscriber in pending state along with a freshly
// generated confirmation token. Both rows are written in one transaction:
// either both persist or neither does. Returns the token so the caller can
// send it out; no email is involved here.
func (s NewSubscriber) Register(store registrationStore) (string, error) {
	tx, err := store.Begin()
	if err != nil {
		return "", err
	}
	subscriberID, err := store.InsertSubscriber(tx, s)
	if err != nil {
		tx.Rollback()
		return "", err
	}
	token := GenerateToken()
	if err := store.InsertToken(tx, subscriberID, token); err != nil {
		tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return token, nil
}
