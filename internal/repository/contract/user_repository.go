package contract

import (
	"context"

	"medichat-be/internal/entity"
	"medichat-be/internal/repository/specification"
)

type UserRepository interface {
	// CreateIfAbsent inserts the user unless a row with the same id already
	// exists; the "already exists" path is not an error. Safe to call
	// concurrently for the same subject.
	CreateIfAbsent(ctx context.Context, user *entity.User) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
