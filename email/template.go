package email

import "fmt"

const confirmationEmailSubject = "Welcome"

const confirmationEmailText = `Welcome to our newsletter!
Visit %s to confirm your subscription.`

const confirmationEmailHTML = `Welcome to our newsletter!<br />Click <a href="%s">here</a> to confirm your subscription.`

// ConfirmationLink builds the link a new subscriber has to visit to confirm
// the subscription, from the service's public base URL and the token stored
// for that subscriber.
func ConfirmationLink(baseURL string, token string) string {
	return fmt.Sprintf("%s/subscriptions/confirm?subscription_token=%s", baseURL, token)
}

// SendConfirmation sends the double opt-in confirmation mail for a new
// subscriber, carrying the confirmation link in both bodies.
func SendConfirmation(sender Sender, recipient string, confirmationLink string) error {
	return sender.Send(recipient,
		confirmationEmailSubject,
		fmt.Sprintf(confirmationEmailHTML, confirmationLink),
		fmt.Sprintf(confirmationEmailText, confirmationLink))
}
