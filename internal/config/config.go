package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Elasticsearch Elasticsearch
	Kafka         Kafka
	Checkpoint    string
	LoggerDB      string
}

type Elasticsearch struct {
	URL      string
	Username string
	Password string
	Index    string
}

type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load reads config.yaml from the working directory. Environment variables
// take precedence over the file; a missing file just leaves the defaults.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("elasticsearch.url", "https://localhost:9200")
	viper.SetDefault("elasticsearch.index", "data")
	viper.SetDefault("checkpoint.path", "ingest-checkpoint.db")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		Elasticsearch: Elasticsearch{
			URL:      viper.GetString("elasticsearch.url"),
			Username: viper.GetString("elasticsearch.username"),
			Password: viper.GetString("elasticsearch.password"),
			Index:    viper.GetString("elasticsearch.index"),
		},
		Kafka: Kafka{
			Brokers: viper.GetStringSlice("kafka.brokers"),
			Topic:   viper.GetString("kafka.topic"),
			GroupID: viper.GetString("kafka.groupID"),
		},
		Checkpoint: viper.GetString("checkpoint.path"),
		LoggerDB:   viper.GetString("logger.db"),
	}, nil
}
