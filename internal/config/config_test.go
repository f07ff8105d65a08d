package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SOCIALFEED_ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("SOCIALFEED_CONFIG", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 8080 || cfg.Database.Driver != DriverPostgres || cfg.ObjectStore.Driver != DriverS3 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Core.StoreTimeout != 5*time.Second || cfg.Core.SignConcurrency != 8 {
		t.Fatalf("unexpected core defaults %+v", cfg.Core)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.Redis.LockTTL < 2*cfg.Core.StoreTimeout {
		t.Fatalf("unexpected lifecycle defaults shutdown=%s lockTTL=%s", cfg.ShutdownTimeout, cfg.Redis.LockTTL)
	}
}

func TestLoadLayersYAMLThenEnv(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
port: 9000
database:
  driver: mongo
  mongoDatabase: feed_test
objectStore:
  driver: minio
  endpoint: localhost:9000
  bucket: pictures
kafka:
  brokers: [kafka-1:9092, kafka-2:9092]
core:
  storeTimeout: 2s
  signConcurrency: 3
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SOCIALFEED_CONFIG", path)
	t.Setenv("SOCIALFEED_PORT", "9100")
	t.Setenv("SOCIALFEED_SIGN_TIMEOUT", "750ms")
	t.Setenv("SOCIALFEED_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 9100 {
		t.Fatalf("expected env to override yaml port, got %d", cfg.AppPort)
	}
	if cfg.Database.Driver != DriverMongo || cfg.Database.MongoDatabase != "feed_test" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Database.MongoURI != "mongodb://localhost:27017" {
		t.Fatalf("expected unset yaml fields to keep defaults, got %q", cfg.Database.MongoURI)
	}
	if cfg.ObjectStore.Driver != DriverMinio || cfg.ObjectStore.Bucket != "pictures" {
		t.Fatalf("unexpected object store config %+v", cfg.ObjectStore)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Core.StoreTimeout != 2*time.Second || cfg.Core.SignTimeout != 750*time.Millisecond || cfg.Core.SignConcurrency != 3 {
		t.Fatalf("unexpected core config %+v", cfg.Core)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[0] != "https://a.example" {
		t.Fatalf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("SOCIALFEED_TEST_DOTENV_BUCKET=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SOCIALFEED_ENV_FILE", envFile)
	t.Cleanup(func() { os.Unsetenv("SOCIALFEED_TEST_DOTENV_BUCKET") })

	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("SOCIALFEED_TEST_DOTENV_BUCKET"); got != "from-dotenv" {
		t.Fatalf("expected .env values to be exported, got %q", got)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"unknownDatabase", map[string]string{"SOCIALFEED_DB_DRIVER": "sqlite"}},
		{"unknownObjectStore", map[string]string{"SOCIALFEED_OBJECT_STORE_DRIVER": "gcs"}},
		{"minioWithoutEndpoint", map[string]string{"SOCIALFEED_OBJECT_STORE_DRIVER": "minio"}},
		{"zeroShutdownTimeout", map[string]string{"SOCIALFEED_SHUTDOWN_TIMEOUT": "0s"}},
		{"lockLeaseShorterThanStoreCalls", map[string]string{
			"SOCIALFEED_REDIS_ADDR":    "localhost:6379",
			"SOCIALFEED_LOCK_TTL":      "6s",
			"SOCIALFEED_STORE_TIMEOUT": "5s",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			t.Setenv("SOCIALFEED_OBJECT_STORE_ENDPOINT", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("SOCIALFEED_CONFIG", filepath.Join(dir, "nope.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("SOCIALFEED_TEST_INT", "many")
	t.Setenv("SOCIALFEED_TEST_DURATION", "soon")
	t.Setenv("SOCIALFEED_TEST_BOOL", "maybe")

	if got := getInt("SOCIALFEED_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback int, got %d", got)
	}
	if got := getDuration("SOCIALFEED_TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("expected fallback duration, got %v", got)
	}
	if got := getBool("SOCIALFEED_TEST_BOOL", true); !got {
		t.Fatal("expected fallback bool")
	}
}
