package email

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/perennialpress/newsletter-backend/util"
)

// SMTPSender submits messages directly over SMTP, for deployments that
// prefer their own submission host over an HTTP provider.
type SMTPSender struct {
	auth               smtp.Auth
	username           string
	password           string
	submissionHostname string
	port               string
	sender             string
}

func makeSMTPSenderFromEnv() (*SMTPSender, error) {
	varErrs := util.Errors{}
	s := &SMTPSender{
		username:           util.RequireEnv("SMTP_USERNAME", &varErrs),
		password:           util.RequireEnv("SMTP_PASSWORD", &varErrs),
		submissionHostname: util.RequireEnv("SMTP_ENDPOINT", &varErrs),
		port:               util.RequireEnv("SMTP_PORT", &varErrs),
		sender:             util.RequireEnv("SMTP_FROM_ADDRESS", &varErrs),
	}
	if len(varErrs) > 0 {
		return nil, varErrs
	}
	log.Printf("Establishing auth connection with SMTP server %s", s.submissionHostname)
	client, err := smtp.Dial(fmt.Sprintf("%s:%s", s.submissionHostname, s.port))
	if err != nil {
		return nil, err
	}
	defer client.Close()
	err = client.StartTLS(&tls.Config{ServerName: s.submissionHostname})
	if err != nil {
		return nil, fmt.Errorf("SMTP server doesn't support STARTTLS")
	}
	ok, auths := client.Extension("AUTH")
	if !ok {
		return nil, fmt.Errorf("remote SMTP server doesn't support any authentication mechanisms")
	}
	if strings.Contains(auths, "PLAIN") {
		s.auth = smtp.PlainAuth("", s.username, s.password, s.submissionHostname)
	} else if strings.Contains(auths, "CRAM-MD5") {
		s.auth = smtp.CRAMMD5Auth(s.username, s.password)
	} else {
		return nil, fmt.Errorf("SMTP server doesn't support PLAIN or CRAM-MD5 authentication")
	}
	return s, nil
}

const multipartBoundary = "np-newsletter-alt"

// Send submits one multipart/alternative message carrying both bodies.
func (s *SMTPSender) Send(recipient string, subject string, htmlBody string, textBody string) error {
	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: multipart/alternative; boundary=%s\r\n"+
		"\r\n"+
		"--%s\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"\r\n"+
		"%s\r\n"+
		"--%s\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"\r\n"+
		"%s\r\n"+
		"--%s--\r\n",
		s.sender, recipient, subject,
		multipartBoundary, multipartBoundary, textBody,
		multipartBoundary, htmlBody, multipartBoundary)
	return smtp.SendMail(fmt.Sprintf("%s:%s", s.submissionHostname, s.port),
		s.auth,
		s.sender, []string{recipient}, []byte(message))
}
