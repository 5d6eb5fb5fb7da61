package health

import "context"

// DBPinger checks vector database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// MetadataPinger checks metadata store availability.
type MetadataPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
