package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	raven "github.com/getsentry/raven-go"
	"github.com/joho/godotenv"

	"github.com/perennialpress/newsletter-backend/api"
	"github.com/perennialpress/newsletter-backend/db"
	"github.com/perennialpress/newsletter-backend/email"
	"github.com/perennialpress/newsletter-backend/util"
)

func validPort(port string) (string, error) {
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("given port %s is invalid", port)
	}
	return fmt.Sprintf(":%s", port), nil
}

func main() {
	godotenv.Load()
	raven.SetDSN(os.Getenv("SENTRY_DSN"))

	cfg, err := db.LoadEnvironmentVariables()
	if err != nil {
		log.Fatal(err)
	}
	database, err := db.InitSQLDatabase(cfg)
	if err != nil {
		log.Fatal(err)
	}
	emailer, err := email.MakeSenderFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	varErrs := util.Errors{}
	baseURL := util.RequireEnv("BASE_URL", &varErrs)
	if len(varErrs) > 0 {
		log.Fatal(varErrs)
	}

	a := api.API{
		Database: database,
		Emailer:  emailer,
		BaseURL:  baseURL,
	}
	mux := http.NewServeMux()
	handler := a.RegisterHandlers(mux)

	portString, err := validPort(cfg.Port)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Listening on %s", portString)
	log.Fatal(http.ListenAndServe(portString, handler))
}
