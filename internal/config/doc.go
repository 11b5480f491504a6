// Package config provides configuration management for the wec CLI.
//
// # Overview
//
// The config package uses Viper to load configuration from a YAML file and
// environment variables. It provides a type-safe configuration structure
// with default values and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.wec/config.yaml and is automatically
// created with sensible defaults on first use.
//
// # Environment Variables
//
// Configuration values can be overridden with environment variables
// prefixed WEC_, nested fields separated by underscores:
//
//   - WEC_EVENT_LOG_BACKEND=sqlite
//   - WEC_LOGGING_LEVEL=debug
//
// LOG_LEVEL (unprefixed, per the interpreter's own environment-variable
// contract) takes priority over both the config file and WEC_LOGGING_LEVEL.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("event log backend: %s", cfg.EventLog.Backend)
package config
