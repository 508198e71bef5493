package util

import (
	"fmt"
	"os"
	"strings"
)

// Errors is a list of errors that can accumulate before being reported in
// one go, eg. while reading several required environment variables.
type Errors []error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "\n")
}

// Add appends an error to the list.
func (e *Errors) Add(err error) {
	*e = append(*e, err)
}

// RequireEnv returns the value of the named environment variable, recording
// an error on errs if it is unset or empty.
func RequireEnv(varName string, errs *Errors) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		errs.Add(fmt.Errorf("environment variable %s must be set", varName))
	}
	return envVar
}
