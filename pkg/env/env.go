package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// Empty values are treated as unset so a blank export cannot blank out a
// default.
func Get(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
