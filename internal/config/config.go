// Package config loads .env files and reads CHRISTUS_* environment variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Prefix is prepended to every environment variable the CLI reads.
const Prefix = "CHRISTUS_"

// DefaultEnvFiles are loaded when no --env-file is given.
var DefaultEnvFiles = []string{".env.local", ".env"}

// LoadEnv loads the given .env files in order. Variables already set in the
// process environment win, and so do files earlier in the list. Missing
// files are ignored. It returns the files that were loaded.
func LoadEnv(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, &errors.ParseError{Format: "dotenv", Path: f, Message: "loading env file", Err: err}
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// Getenv returns the value of CHRISTUS_<key>, or def when unset.
func Getenv(key, def string) string {
	if v, ok := os.LookupEnv(Prefix + key); ok {
		return v
	}
	return def
}

// GetBool parses CHRISTUS_<key> as a boolean, returning def when unset or
// unparsable.
func GetBool(key string, def bool) bool {
	v, ok := os.LookupEnv(Prefix + key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// S3 holds credentials for s3:// translation sources.
type S3 struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Configured reports whether an endpoint was given.
func (s S3) Configured() bool {
	return s.Endpoint != ""
}

// S3FromEnv reads CHRISTUS_S3_* variables.
func S3FromEnv() S3 {
	return S3{
		Endpoint:  Getenv("S3_ENDPOINT", ""),
		Region:    Getenv("S3_REGION", ""),
		AccessKey: Getenv("S3_ACCESS_KEY", ""),
		SecretKey: Getenv("S3_SECRET_KEY", ""),
		UseSSL:    GetBool("S3_USE_SSL", true),
	}
}
