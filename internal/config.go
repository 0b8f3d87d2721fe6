package internal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rovercam/rovercam/internal/api"
	"github.com/rovercam/rovercam/internal/control"
	"github.com/rovercam/rovercam/internal/database"
	"github.com/rovercam/rovercam/internal/sweep"
)

type (
	// RoverCamConfig is the user supplied configuration for the whole
	// service, loadable from a YAML file with env var overrides.
	RoverCamConfig struct {
		Rest     api.RestConfig          `yaml:"api"`
		Database database.DatabaseConfig `yaml:"database"`
		Storage  StorageConfig           `yaml:"storage"`
		Mqtt     control.MqttConfig      `yaml:"mqtt"`
		Sweep    sweep.Config            `yaml:"sweep"`
	}

	StorageConfig struct {
		BlobDirPath string `yaml:"blob_dir" env:"BLOB_DIR" env-default:"./uploads" validate:"required"`
	}
)

// LoadFromFile loads a YAML formatted configuration file into this
// RoverCamConfig, applying env var overrides and defaults, and validates
// the result.
func (config *RoverCamConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	return config.validate()
}

// LoadFromEnv populates this RoverCamConfig from env vars and defaults
// only, for deployments which carry no config file.
func (config *RoverCamConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return config.validate()
}

func (config *RoverCamConfig) validate() error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
