package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://localhost:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, "data", cfg.Elasticsearch.Index)
	assert.Equal(t, "ingest-checkpoint.db", cfg.Checkpoint)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	chdir(t, dir)

	yaml := `
elasticsearch:
  url: https://es.example.com:9200
  username: admin
  password: secret
  index: events
kafka:
  brokers:
    - broker1:9092
    - broker2:9092
  topic: documents
  groupID: ingest
checkpoint:
  path: /var/lib/ingest/checkpoint.db
logger:
  db: /var/log/ingest/logs.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://es.example.com:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, "admin", cfg.Elasticsearch.Username)
	assert.Equal(t, "secret", cfg.Elasticsearch.Password)
	assert.Equal(t, "events", cfg.Elasticsearch.Index)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "documents", cfg.Kafka.Topic)
	assert.Equal(t, "ingest", cfg.Kafka.GroupID)
	assert.Equal(t, "/var/lib/ingest/checkpoint.db", cfg.Checkpoint)
	assert.Equal(t, "/var/log/ingest/logs.db", cfg.LoggerDB)
}
