// Package config loads wardwatch configuration.
//
// Runtime settings come from environment variables parsed into tagged structs
// by github.com/caarlos0/env/v11, with a `.env` file in the working directory
// loaded first through github.com/joho/godotenv. Each struct type is parsed
// once per process and served from a cache afterwards.
//
// Deployment-time data that is too structured for environment variables, such
// as the escalation tier ladder, is read from YAML files with LoadYAML.
//
//	var cfg AppConfig
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
//	var tiers TierFile
//	if err := config.LoadYAML(cfg.TiersFile, &tiers); err != nil {
//	    return err
//	}
package config
