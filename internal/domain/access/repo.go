package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("access grant not found")

type Repository interface {
	Create(ctx context.Context, g *AccessGrant) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error)
	GetByCode(ctx context.Context, code string) (*AccessGrant, error)
	ListByMediLinkID(ctx context.Context, medilinkID string, limit, offset int) ([]*AccessGrant, int, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}
