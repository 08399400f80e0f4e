package unitofwork

import "context"

// RepositoryFactory is implemented by the postgres and in-memory store packages.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
