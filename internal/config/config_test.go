package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baselume-ledger/internal/domain"
)

const minimalYAML = `
ledger:
  owner: "0x00000000000000000000000000000000000000aa"
auth:
  jwt_secret: "test-secret"
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Kafka.Topic != "baselume-scores" {
		t.Errorf("Kafka.Topic = %q", cfg.Kafka.Topic)
	}
	if cfg.Finalizer.LookbackDays != 7 || cfg.Finalizer.Offset != 5*time.Minute {
		t.Errorf("Finalizer = %+v", cfg.Finalizer)
	}
	if cfg.Ledger.BaseURI != "https://api.baselume.xyz/nft/metadata/" {
		t.Errorf("Ledger.BaseURI = %q", cfg.Ledger.BaseURI)
	}
	if cfg.Leaderboard.DefaultLimit != 10 || cfg.Leaderboard.MaxLimit != 100 {
		t.Errorf("Leaderboard = %+v", cfg.Leaderboard)
	}
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("LEDGER_OWNER", "0x00000000000000000000000000000000000000AB")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Parse([]byte(`
server:
  port: 9090
  read_timeout: 2s
ledger:
  owner: "${LEDGER_OWNER}"
  submitters:
    - "0x00000000000000000000000000000000000000bb"
auth:
  jwt_secret: "${JWT_SECRET}"
`))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("Auth.JWTSecret = %q, want from-env", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != 9090 || cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if len(cfg.Ledger.Submitters) != 1 {
		t.Errorf("Ledger.Submitters = %v", cfg.Ledger.Submitters)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing owner",
			yaml:    "auth:\n  jwt_secret: x\n",
			wantErr: "ledger.owner",
		},
		{
			name: "bad submitter",
			yaml: `
ledger:
  owner: "0x00000000000000000000000000000000000000aa"
  submitters: ["0x1234"]
auth:
  jwt_secret: x
`,
			wantErr: "ledger.submitters[0]",
		},
		{
			name:    "missing secret",
			yaml:    "ledger:\n  owner: \"0x00000000000000000000000000000000000000aa\"\n",
			wantErr: "jwt_secret",
		},
		{
			name: "kafka without submitter",
			yaml: minimalYAML + `
kafka:
  enabled: true
`,
			wantErr: "kafka.submitter",
		},
		{
			name: "kafka submitter not allowed to submit",
			yaml: minimalYAML + `
kafka:
  enabled: true
  submitter: "0x00000000000000000000000000000000000000bb"
`,
			wantErr: "kafka.submitter",
		},
		{
			name: "limits inverted",
			yaml: minimalYAML + `
leaderboard:
  default_limit: 50
  max_limit: 20
`,
			wantErr: "default_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_KafkaSubmitterMatchesCaseInsensitively(t *testing.T) {
	cfg, err := Parse([]byte(`
ledger:
  owner: "0x00000000000000000000000000000000000000aa"
  submitters: ["0x00000000000000000000000000000000000000bb"]
auth:
  jwt_secret: x
kafka:
  enabled: true
  submitter: "0x00000000000000000000000000000000000000BB"
`))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if !cfg.Kafka.Enabled {
		t.Error("Kafka.Enabled = false")
	}

	if _, err := Parse([]byte(minimalYAML + `
kafka:
  enabled: true
  submitter: "0x00000000000000000000000000000000000000AA"
`)); err != nil {
		t.Errorf("owner as kafka submitter: Parse error = %v", err)
	}
}

func TestParse_InvalidOwnerIsAddressError(t *testing.T) {
	_, err := Parse([]byte("ledger:\n  owner: nope\nauth:\n  jwt_secret: x\n"))
	if !errors.Is(err, domain.ErrInvalidAddress) {
		t.Errorf("error = %v, want ErrInvalidAddress", err)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPostgresConnectionString(t *testing.T) {
	pc := PostgresConfig{User: "u", Password: "p", Host: "db", Port: 5432, Database: "ledger"}
	want := "postgres://u:p@db:5432/ledger?sslmode=disable"
	if got := pc.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestExampleConfigParses(t *testing.T) {
	t.Setenv("LEDGER_OWNER", "0x00000000000000000000000000000000000000aa")
	t.Setenv("LEDGER_SUBMITTER", "0x00000000000000000000000000000000000000bb")
	t.Setenv("LEDGER_MINTER", "0x00000000000000000000000000000000000000cc")
	t.Setenv("JWT_SECRET", "example")
	t.Setenv("POSTGRES_PASSWORD", "example")

	data, err := os.ReadFile("../../config.example.yaml")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if !cfg.Postgres.Enabled || !cfg.Finalizer.Enabled || cfg.Kafka.Enabled {
		t.Errorf("unexpected feature flags: %+v", cfg)
	}
}
