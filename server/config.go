package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"gopkg.in/yaml.v2"
)

// Config represents the server configuration
type Config struct {
	Server struct {
		HTTPPort int `yaml:"http_port" json:"http_port"`
		GRPCPort int `yaml:"grpc_port" json:"grpc_port"`
	} `yaml:"server" json:"server"`
	Mongo struct {
		URI               string `yaml:"uri" json:"uri"`
		Database          string `yaml:"database" json:"database"`
		Username          string `yaml:"username" json:"username"`
		PasswordSecretArn string `yaml:"password_secret_arn" json:"password_secret_arn"`
		TLSCAFile         string `yaml:"tls_ca_file" json:"tls_ca_file"`
	} `yaml:"mongo" json:"mongo"`
	Cache struct {
		Address string `yaml:"address" json:"address"`
		TTL     int    `yaml:"ttl" json:"ttl"`
	} `yaml:"cache" json:"cache"`
	AWS struct {
		Region string `yaml:"region" json:"region"`
	} `yaml:"aws" json:"aws"`
}

// LoadConfig loads the configuration from a YAML file when path names an
// existing file, and otherwise treats path as an AWS Parameter Store
// parameter holding the configuration as JSON.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return loadConfigFromFile(path)
	}
	return loadConfigFromParameterStore(path)
}

// loadConfigFromFile loads the configuration from a YAML file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	return &config, nil
}

// loadConfigFromParameterStore loads the configuration from AWS Parameter Store
func loadConfigFromParameterStore(paramPath string) (*Config, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	ssmClient := ssm.New(sess)

	param, err := ssmClient.GetParameter(&ssm.GetParameterInput{
		Name:           aws.String(paramPath),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter from Parameter Store: %w", err)
	}

	var config Config
	if err := json.Unmarshal([]byte(*param.Parameter.Value), &config); err != nil {
		return nil, fmt.Errorf("failed to parse parameter value as JSON: %w", err)
	}

	applyDefaults(&config)

	return &config, nil
}

// applyDefaults sets default values for the configuration
func applyDefaults(config *Config) {
	if config.Server.HTTPPort == 0 {
		config.Server.HTTPPort = 8080
	}
	if config.Server.GRPCPort == 0 {
		config.Server.GRPCPort = 8081
	}
	if config.Mongo.URI == "" {
		config.Mongo.URI = "mongodb://localhost:27017"
	}
	if config.Mongo.Database == "" {
		config.Mongo.Database = "resourcedb"
	}
	if config.Cache.TTL == 0 {
		config.Cache.TTL = 3600
	}
	if config.AWS.Region == "" {
		config.AWS.Region = "us-east-1"
	}
}
