package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	RMTrack  RMTrackConfig  `yaml:"rmtrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
}

type RMTrackConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// Интервал периодической проверки одного трека (по умолчанию 900 = 15 минут).
	CheckIntervalSeconds    int `yaml:"check_interval_seconds"`
	CurrentStatusTTLSeconds int `yaml:"current_status_ttl_seconds"`

	// "mock" (по умолчанию) или "http".
	ProviderMode        string `yaml:"provider_mode"`
	ProviderStepSeconds int    `yaml:"provider_step_seconds"`
	CarrierBaseURL      string `yaml:"carrier_base_url"`
	CarrierAPIKey       string `yaml:"carrier_api_key"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
