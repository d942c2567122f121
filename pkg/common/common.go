package common

import (
	"errors"
	"os"
)

var (
	ErrRequestNotFound    = errors.New("limit change request not found")
	ErrRequestNotOwned    = errors.New("limit change request belongs to another user")
	ErrRequestNotPending  = errors.New("limit change request is not pending")
	ErrRequestNotEditable = errors.New("limit change request can no longer be edited")
	ErrInvalidStatus      = errors.New("invalid request status")
	ErrDefaultLimitNotSet = errors.New("no active default limit configured")
	ErrOverrideExists     = errors.New("an approved limit override already exists for this user")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

// GetEnv returns the value of the environment variable or a default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
