package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads the first readable .env file. Existing process
// variables are never overwritten.
func loadEnvFile() {
	for _, p := range envFiles {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			warn(fmt.Sprintf("could not load %s: %v", p, err))
			continue
		}
		return
	}
}

func warn(msg string) {
	fmt.Fprintf(os.Stderr, "config: %s\n", msg)
}
