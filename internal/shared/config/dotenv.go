package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles copies KEY=VALUE pairs from each readable file into the process environment and
// returns the files it read. The environment wins over any file, and earlier files win over later ones.
func loadEnvFiles(paths ...string) []string {
	var loaded []string
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		for key, value := range values {
			if _, set := os.LookupEnv(key); !set {
				_ = os.Setenv(key, value)
			}
		}
		loaded = append(loaded, path)
	}
	return loaded
}
