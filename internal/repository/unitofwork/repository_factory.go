package unitofwork

import "context"

// RepositoryFactory mints a fresh UnitOfWork per request. Services hold
// the factory, never a UnitOfWork, so no transaction state outlives a
// single call.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
