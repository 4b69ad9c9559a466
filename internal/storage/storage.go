package storage

import (
	"context"
	"time"
)

// Generation statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// GenerationRecord is one persisted generation request and its outcome
type GenerationRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Backend     string    `json:"backend"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Prompt      string    `json:"prompt"`
	Output      string    `json:"output"`
	Error       string    `json:"error,omitempty"`
	Status      string    `json:"status"` // success, error
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository Storage interface
type Repository interface {
	SaveGeneration(ctx context.Context, record *GenerationRecord) error
	GetGeneration(ctx context.Context, id string) (*GenerationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*GenerationRecord, error)
	Close() error
}
