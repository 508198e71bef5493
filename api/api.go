package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	raven "github.com/getsentry/raven-go"

	"github.com/perennialpress/newsletter-backend/db"
	"github.com/perennialpress/newsletter-backend/email"
	"github.com/perennialpress/newsletter-backend/models"
)

////////////////////////////////
//  *****   REST API   *****  //
////////////////////////////////

// API is the HTTP API that this service provides.
// All requests respond with a response JSON, with fields:
// {
//     status_code // HTTP status code of request
//     message // Any error message accompanying the status_code. If 200, empty.
//     response // Response data (as JSON) from this request.
// }
// Any POST request accepts either URL query parameters or data value parameters,
// and prefers the latter if both are present.
type API struct {
	Database db.Database
	Emailer  email.Sender
	// BaseURL is the public base URL confirmation links are built against.
	BaseURL string
}

type response struct {
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Response   interface{} `json:"response"`
}

type apiHandler func(r *http.Request) response

func (api *API) wrapper(handler apiHandler) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		response := handler(r)
		if response.StatusCode == http.StatusInternalServerError {
			packet := raven.NewPacket(response.Message, raven.NewHttp(r))
			raven.Capture(packet, nil)
		}
		writeJSON(w, response)
	}
}

func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// RegisterHandlers binds API functions to the given http server,
// and returns the resulting handler.
func (api *API) RegisterHandlers(mux *http.ServeMux) http.Handler {
	mux.HandleFunc("/subscriptions", api.wrapper(api.subscribe))
	mux.HandleFunc("/subscriptions/confirm", api.wrapper(api.confirm))
	mux.HandleFunc("/health_check", pingHandler)
	mux.HandleFunc("/api/ping", pingHandler)
	return middleware(mux)
}

// subscribe is the handler for /subscriptions.
//   POST /subscriptions
//        name: Display name of the new subscriber.
//        email: Address the confirmation e-mail is sent to.
// Validates the submitted contact data, stores a pending subscriber with a
// fresh confirmation token in one transaction, and only then sends the
// confirmation e-mail. A delivery failure leaves the committed rows in
// place; resubmitting is the only recovery path.
func (api API) subscribe(r *http.Request) response {
	if r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/subscriptions only accepts POST requests"}
	}
	subscriber, err := models.ParseNewSubscriber(r.FormValue("name"), r.FormValue("email"))
	if err != nil {
		return badRequest(err.Error())
	}
	token, err := subscriber.Register(api.Database)
	if err != nil {
		log.Printf("Failed to store subscription for %s: %v", subscriber.Email, err)
		return serverError("could not store new subscription")
	}
	confirmationLink := email.ConfirmationLink(api.BaseURL, token)
	if err := email.SendConfirmation(api.Emailer, subscriber.Email, confirmationLink); err != nil {
		log.Printf("Failed to send confirmation e-mail to %s: %v", subscriber.Email, err)
		return serverError("unable to send confirmation e-mail")
	}
	return response{StatusCode: http.StatusOK}
}

// confirm is the handler for /subscriptions/confirm.
//   GET|POST /subscriptions/confirm?subscription_token=<token>
//        subscription_token: Token from the confirmation e-mail link.
// The token's shape is checked before any storage lookup; a well-formed but
// unknown token responds 401 rather than 400.
func (api API) confirm(r *http.Request) response {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/subscriptions/confirm only accepts GET and POST requests"}
	}
	raw := r.FormValue("subscription_token")
	if raw == "" {
		return badRequest("query parameter subscription_token not specified")
	}
	token, err := models.ParseToken(raw)
	if err != nil {
		return badRequest(err.Error())
	}
	userErr, dbErr := token.Redeem(api.Database)
	if dbErr != nil {
		log.Printf("Failed to confirm subscription: %v", dbErr)
		return serverError("could not confirm subscription")
	}
	if userErr != nil {
		return response{StatusCode: http.StatusUnauthorized, Message: userErr.Error()}
	}
	return response{StatusCode: http.StatusOK}
}

// Writes `apiResponse` as a JSON object to http.ResponseWriter `w`. If an
// error occurs, writes `http.StatusInternalServerError` to `w`.
func writeJSON(w http.ResponseWriter, apiResponse response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiResponse.StatusCode)
	b, err := json.MarshalIndent(apiResponse, "", "  ")
	if err != nil {
		msg := fmt.Sprintf("Internal error: could not format JSON. (%s)\n", err)
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "%s\n", b)
}

func badRequest(format string, a ...interface{}) response {
	return response{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf(format, a...),
	}
}

func serverError(format string, a ...interface{}) response {
	return response{
		StatusCode: http.StatusInternalServerError,
		Message:    fmt.Sprintf(format, a...),
	}
}
