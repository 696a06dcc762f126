package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv loads a .env file from the working directory when one exists.
// Missing files are not an error; the environment stays authoritative.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load()
}
