// Package config provides configuration management for the lifeline CLI.
//
// Configuration is loaded from environment variables and validated on startup.
// All options have defaults suitable for local use.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
