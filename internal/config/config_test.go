package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small"},
		LLM:       LLMConfig{Model: "gpt-4o-mini"},
		Chunking:  ChunkingConfig{ChunkSize: 1000, ChunkOverlap: 200},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingModels(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}

	cfg = validConfig()
	cfg.LLM.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing llm model")
	}
}

func TestValidate_OverlapNotSmallerThanChunkSize(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking.ChunkSize = 100
	cfg.Chunking.ChunkOverlap = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.MaxUploadBytes != 32<<20 {
		t.Errorf("expected MaxUploadBytes=32MB, got %d", cfg.HTTP.MaxUploadBytes)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected Dimensions=1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.MaxInFlight != 1 {
		t.Errorf("expected MaxInFlight=1, got %d", cfg.Embedding.MaxInFlight)
	}
	if cfg.Chunking.ChunkSize != 1000 {
		t.Errorf("expected ChunkSize=1000, got %d", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.ChunkOverlap != 200 {
		t.Errorf("expected ChunkOverlap=200, got %d", cfg.Chunking.ChunkOverlap)
	}
	if cfg.Chat.TopK != 4 {
		t.Errorf("expected TopK=4, got %d", cfg.Chat.TopK)
	}
	if cfg.Chat.CannotAnswerMessage != DefaultCannotAnswerMessage {
		t.Errorf("unexpected cannot-answer message: %q", cfg.Chat.CannotAnswerMessage)
	}
	if cfg.Ingest.Workers != 2 {
		t.Errorf("expected Workers=2, got %d", cfg.Ingest.Workers)
	}
	if cfg.Ingest.HNSWM != 16 {
		t.Errorf("expected HNSWM=16, got %d", cfg.Ingest.HNSWM)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Chunking: ChunkingConfig{ChunkSize: 500, ChunkOverlap: 50},
		Chat:     ChatConfig{TopK: 8},
		Ingest:   IngestConfig{Workers: 4},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Chunking.ChunkSize != 500 {
		t.Errorf("expected ChunkSize=500, got %d", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.ChunkOverlap != 50 {
		t.Errorf("expected ChunkOverlap=50, got %d", cfg.Chunking.ChunkOverlap)
	}
	if cfg.Chat.TopK != 8 {
		t.Errorf("expected TopK=8, got %d", cfg.Chat.TopK)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Ingest.Workers)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("DOCCHAT_TEST_VAR", "secret")
	defer os.Unsetenv("DOCCHAT_TEST_VAR")

	in := []byte("api_key: ${DOCCHAT_TEST_VAR}\nmodel: ${DOCCHAT_UNSET_VAR:-fallback}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: fallback\n"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestExpandEnvVars_UnsetWithoutDefault(t *testing.T) {
	out := string(expandEnvVars([]byte("key: ${DOCCHAT_UNSET_VAR}")))
	if out != "key: " {
		t.Errorf("expected empty substitution, got %q", out)
	}
}
