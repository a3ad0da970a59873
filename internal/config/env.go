// Package config holds small environment helpers shared by examples and
// commands.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Getenv returns the trimmed value of key, or fallback when unset or blank.
func Getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func ParseIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

