// config/env.go - Environment readers
package config

import (
	"os"
	"strconv"
	"strings"
)

// lookup returns the trimmed value for key and whether it was set to something non-empty.
func lookup(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}

func requiredString(key string) (string, error) {
	value, ok := lookup(key)
	if !ok {
		return "", &Error{Key: key, Reason: "required value is missing"}
	}
	return value, nil
}

func stringOr(key, defaultValue string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return defaultValue
}

func intOr(key string, defaultValue int) (int, error) {
	raw, ok := lookup(key)
	if !ok {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &Error{Key: key, Reason: "not an integer: " + strconv.Quote(raw), Err: err}
	}
	return value, nil
}

// positiveIntOr is intOr with a lower bound of 1.
func positiveIntOr(key string, defaultValue int) (int, error) {
	value, err := intOr(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, &Error{Key: key, Reason: "must be positive, got " + strconv.Itoa(value)}
	}
	return value, nil
}

// boolOr accepts true/1/yes/y and false/0/no/n, case-insensitive.
func boolOr(key string, defaultValue bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok {
		return defaultValue, nil
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, &Error{Key: key, Reason: "not a boolean: " + strconv.Quote(raw)}
	}
}
