package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
http:
  port: 9090
broker:
  url: amqp://broker:5672/
  prefetch: 8
mongo:
  database: platform_test
service:
  queue: organizations
gateway:
  reply_timeout: 2s
  routes:
    - operation: create_product
      queue: products
      event: product.create
      required: [name]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReadsFileAndFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Fatalf("file value lost: port %d", cfg.HTTP.Port)
	}
	if cfg.Broker.URL != "amqp://broker:5672/" || cfg.Broker.Prefetch != 8 {
		t.Fatalf("broker config wrong: %+v", cfg.Broker)
	}
	if cfg.Service.Queue != "organizations" {
		t.Fatalf("service queue wrong: %q", cfg.Service.Queue)
	}
	if cfg.Gateway.ReplyTimeout != 2*time.Second {
		t.Fatalf("reply timeout wrong: %s", cfg.Gateway.ReplyTimeout)
	}

	// Unset keys come from defaults.
	if cfg.HTTP.Host != "0.0.0.0" {
		t.Fatalf("default host missing: %q", cfg.HTTP.Host)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.InitialInterval != 500*time.Millisecond {
		t.Fatalf("default retry policy missing: %+v", cfg.Retry)
	}
	if cfg.Mongo.URI != "mongodb://localhost:27017" {
		t.Fatalf("default mongo uri missing: %q", cfg.Mongo.URI)
	}

	if len(cfg.Gateway.Routes) != 1 {
		t.Fatalf("expected one route, got %d", len(cfg.Gateway.Routes))
	}
	route := cfg.Gateway.Routes[0]
	if route.Operation != "create_product" || route.Event != "product.create" {
		t.Fatalf("route wrong: %+v", route)
	}
	if len(route.Required) != 1 || route.Required[0] != "name" {
		t.Fatalf("required fields wrong: %v", route.Required)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("RABBITMQ_URI", "amqp://override:5672/")
	t.Setenv("SERVICE_QUEUE", "stores")
	t.Setenv("GATEWAY_REPLY_TIMEOUT", "7s")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Broker.URL != "amqp://override:5672/" {
		t.Fatalf("env override lost: %q", cfg.Broker.URL)
	}
	if cfg.Service.Queue != "stores" {
		t.Fatalf("env override lost: %q", cfg.Service.Queue)
	}
	if cfg.Gateway.ReplyTimeout != 7*time.Second {
		t.Fatalf("env override lost: %s", cfg.Gateway.ReplyTimeout)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 8080 || cfg.Service.Workers != 5 {
		t.Fatalf("defaults missing: %+v", cfg)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a named but missing config file")
	}
}
