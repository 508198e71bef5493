package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/perennialpress/newsletter-backend/util"
)

// Sender interface wraps a back-end that can send e-mails.
type Sender interface {
	// Send submits one message with both an HTML and a plain-text body.
	Send(recipient string, subject string, htmlBody string, textBody string) error
}

// MakeSenderFromEnv builds the configured email back-end. EMAIL_TRANSPORT
// selects between the HTTP provider client and direct SMTP submission.
// When unset, outgoing mail is logged instead of sent.
func MakeSenderFromEnv() (Sender, error) {
	switch transport := os.Getenv("EMAIL_TRANSPORT"); transport {
	case "http":
		return makeHTTPSenderFromEnv()
	case "smtp":
		return makeSMTPSenderFromEnv()
	case "":
		log.Println("Warning: email transport not configured, outgoing mail will only be logged")
		return logSender{}, nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_TRANSPORT %q", transport)
	}
}

// HTTPSender submits messages to a transactional email provider's REST API,
// authenticated with a server token.
type HTTPSender struct {
	baseURL     string
	serverToken string
	sender      string
	client      *http.Client
}

const defaultEmailTimeout = 10 * time.Second

func makeHTTPSenderFromEnv() (*HTTPSender, error) {
	varErrs := util.Errors{}
	s := &HTTPSender{
		baseURL:     util.RequireEnv("EMAIL_BASE_URL", &varErrs),
		serverToken: util.RequireEnv("EMAIL_SERVER_TOKEN", &varErrs),
		sender:      util.RequireEnv("EMAIL_FROM_ADDRESS", &varErrs),
	}
	if len(varErrs) > 0 {
		return nil, varErrs
	}
	timeout := defaultEmailTimeout
	if secs := os.Getenv("EMAIL_TIMEOUT_SECONDS"); secs != "" {
		n, err := strconv.Atoi(secs)
		if err != nil {
			return nil, fmt.Errorf("EMAIL_TIMEOUT_SECONDS must be a number, got %q", secs)
		}
		timeout = time.Duration(n) * time.Second
	}
	s.client = &http.Client{Timeout: timeout}
	return s, nil
}

// Send posts one message to the provider. Anything but a 200 from the
// provider is reported as a delivery failure; nothing is retried here.
func (s *HTTPSender) Send(recipient string, subject string, htmlBody string, textBody string) error {
	payload := struct {
		From     string
		To       string
		Subject  string
		HtmlBody string
		TextBody string
	}{
		From:     s.sender,
		To:       recipient,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", s.serverToken)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	return nil
}

// logSender drops messages into the process log. Used when no transport is
// configured, eg. in local development.
type logSender struct{}

func (logSender) Send(recipient string, subject string, htmlBody string, textBody string) error {
	log.Printf("To: %s\nSubject: %s\n\n%s", recipient, subject, textBody)
	return nil
}
