package config

import (
	"os"
	"path/filepath"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".geoprof_token"
)

// APIURL returns the base URL for the dashboard API.
// It can be overridden with the GEOPROF_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("GEOPROF_API_URL"); v != "" {
		return v
	}
	return defaultAPIURL
}

// ExecuteAPIKey returns the shared key for the trigger endpoints.
func ExecuteAPIKey() string {
	return os.Getenv("GEOPROF_EXECUTE_API_KEY")
}

// SaveToken writes the JWT token to the user's home directory.
func SaveToken(token string) error {
	return os.WriteFile(tokenPath(), []byte(token), 0600)
}

// LoadToken reads the locally stored JWT token.
func LoadToken() (string, error) {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RemoveToken deletes the locally stored JWT token, if any.
func RemoveToken() error {
	err := os.Remove(tokenPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func tokenPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, tokenFileName)
}
