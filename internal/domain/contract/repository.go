package contract

import "context"

// Repository persists contract aggregates. Implementations assign the id
// sequence on Create and enforce the name and (node, deployment hash)
// uniqueness constraints.
type Repository interface {
	// Create persists a new contract and assigns its id.
	Create(ctx context.Context, c *Contract) error
	// Update persists changes to an existing contract.
	Update(ctx context.Context, c *Contract) error
	// Delete removes a contract row. Only terminal contracts are deleted;
	// history lives in the event stream.
	Delete(ctx context.Context, id uint64) error

	// GetByID loads a contract by id.
	GetByID(ctx context.Context, id uint64) (*Contract, error)
	// GetByName loads a name registration by its registered name.
	GetByName(ctx context.Context, name string) (*Contract, error)
	// GetByNodeAndHash loads a workload by its node and deployment hash.
	GetByNodeAndHash(ctx context.Context, nodeID uint64, hash string) (*Contract, error)

	// ListByReservation returns the workload contracts deployed under a
	// reservation.
	ListByReservation(ctx context.Context, reservationID uint64) ([]*Contract, error)
	// ListByNode returns all contracts bound to a node.
	ListByNode(ctx context.Context, nodeID uint64) ([]*Contract, error)
	// ListIDs returns every live contract id, used to rebuild the billing
	// schedule at startup.
	ListIDs(ctx context.Context) ([]uint64, error)
}
