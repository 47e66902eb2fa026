package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseFilePath          string
	DatabaseMaxRetries        int
	FrontendURL               string
	GoogleBooksAPIKey         string
	GoogleBooksBaseURL        string
	Hostname                  string
	OpenLibraryCoversBaseURL  string
	OpenLibrarySearchBaseURL  string
	PluginDir                 string
	ServerHost                string
	ServerPort                int
	WatcherGraceDelay         time.Duration
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        3,
		GoogleBooksAPIKey:         os.Getenv("GOOGLE_BOOKS_API_KEY"),
		GoogleBooksBaseURL:        "https://www.googleapis.com",
		Hostname:                  hostname,
		OpenLibraryCoversBaseURL:  "https://covers.openlibrary.org",
		OpenLibrarySearchBaseURL:  "http://metadata.devourer.app",
		PluginDir:                 "./plugins",
		ServerPort:                4545,
		WatcherGraceDelay:         5 * time.Second,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		loadProductionConfig(cfg)
	}

	return cfg, nil
}
