package util

import (
	"os"
	"strings"
	"testing"
)

func TestRequireEnvMissing(t *testing.T) {
	varErrs := Errors{}
	RequireEnv("FAKE_ENV_VAR_THAT_IS_NOT_SET", &varErrs)
	if len(varErrs) != 1 {
		t.Errorf("expected one error for an unset variable, got %d", len(varErrs))
	}
}

func TestRequireEnvPresent(t *testing.T) {
	os.Setenv("UTIL_TEST_ENV_VAR", "value")
	defer os.Unsetenv("UTIL_TEST_ENV_VAR")
	varErrs := Errors{}
	val := RequireEnv("UTIL_TEST_ENV_VAR", &varErrs)
	if len(varErrs) != 0 {
		t.Errorf("expected no errors, got %v", varErrs)
	}
	if val != "value" {
		t.Errorf("expected value, got %s", val)
	}
}

func TestErrorsJoinsMessages(t *testing.T) {
	varErrs := Errors{}
	RequireEnv("FAKE_ENV_VAR_ONE", &varErrs)
	RequireEnv("FAKE_ENV_VAR_TWO", &varErrs)
	msg := varErrs.Error()
	if !strings.Contains(msg, "FAKE_ENV_VAR_ONE") || !strings.Contains(msg, "FAKE_ENV_VAR_TWO") {
		t.Errorf("error message should mention every missing variable, got %q", msg)
	}
}
