package config

import (
	"os"
	"strconv"
	"time"
)

func loadDevelopmentConfig(cfg *Config) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil {
		cfg.ServerPort = port
	}

	cfg.DatabaseDebug = true
	cfg.DatabaseFilePath = "./tmp/data.sqlite"
	cfg.FrontendURL = "http://localhost:6060"
	cfg.ServerHost = "127.0.0.1"
}

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = "file::memory:?cache=shared"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.WatcherGraceDelay = 10 * time.Millisecond
}

func loadProductionConfig(cfg *Config) {
	if path := os.Getenv("DATABASE_FILE_PATH"); path != "" {
		cfg.DatabaseFilePath = path
	} else {
		cfg.DatabaseFilePath = "/config/data.sqlite"
	}
	if dir := os.Getenv("PLUGIN_DIRECTORY"); dir != "" {
		cfg.PluginDir = dir
	} else {
		cfg.PluginDir = "/config/plugins"
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.ServerPort = port
	}
	cfg.FrontendURL = os.Getenv("FRONTEND_URL")
}
