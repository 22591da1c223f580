package shared

import "context"

// UnitOfWork runs a function inside one storage transaction: every repository
// write issued through the function's context commits together or not at all.
type UnitOfWork interface {
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}
