package usecase

import (
	"context"

	"caat-reconciliation/internal/domain"
)

// TableRepository defines the interface for loading raw tabular files.
// The usecase layer depends on this interface, not on a concrete implementation.
//
//go:generate mockgen -destination=mocks/mock_repository.go -source=interface.go TableRepository
type TableRepository interface {
	GetTable(ctx context.Context, path string) (*domain.Table, error)
}
