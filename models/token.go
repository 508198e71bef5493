package models

import (
	"crypto/rand"
	"fmt"
)

// TokenLength is the exact length of a confirmation token.
const TokenLength = 25

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Token stores the state of a subscription confirmation token. Tokens are
// never expired or invalidated after use; redeeming one twice succeeds both
// times.
type Token struct {
	Token        string `json:"token"`
	SubscriberID string `json:"subscriber_id"`
}

// confirmationStore is the interface for resolving a token and flipping its
// subscriber to confirmed.
type confirmationStore interface {
	GetSubscriberIDByToken(token string) (string, bool, error)
	MarkConfirmed(subscriberID string) error
}

// GenerateToken returns a fresh confirmation token: TokenLength characters
// drawn uniformly at random from the alphanumeric alphabet. Collisions are
// not checked here; with 62^25 possible tokens the probability is treated
// as negligible.
func GenerateToken() string {
	token := make([]byte, TokenLength)
	buf := make([]byte, 1)
	for i := 0; i < TokenLength; {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Errorf("could not read from system randomness source: %v", err))
		}
		// Reject bytes above the largest multiple of the alphabet size so
		// the modulo below stays uniform.
		if buf[0] >= byte(len(tokenAlphabet)*4) {
			continue
		}
		token[i] = tokenAlphabet[int(buf[0])%len(tokenAlphabet)]
		i++
	}
	return string(token)
}

// ParseToken checks the shape of a raw confirmation token before any
// storage lookup: exactly TokenLength ASCII alphanumeric characters.
func ParseToken(raw string) (Token, error) {
	if len(raw) != TokenLength {
		return Token{}, fmt.Errorf("confirmation token must be exactly %d characters long", TokenLength)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			continue
		}
		return Token{}, fmt.Errorf("confirmation token contains non-alphanumeric character %q", c)
	}
	return Token{Token: raw}, nil
}

// Redeem resolves this token to its subscriber and marks that subscriber
// confirmed, recording the subscriber id on the token. A well-formed but
// unknown token is reported through userErr; storage faults through dbErr.
// The status update is unconditional, so redeeming an already-redeemed
// token succeeds with no observable change.
func (t *Token) Redeem(store confirmationStore) (userErr error, dbErr error) {
	subscriberID, found, err := store.GetSubscriberIDByToken(t.Token)
	if err != nil {
		return nil, err
	}
	if !found {
		return fmt.Errorf("unknown confirmation token"), nil
	}
	t.SubscriberID = subscriberID
	return nil, store.MarkConfirmed(subscriberID)
}
