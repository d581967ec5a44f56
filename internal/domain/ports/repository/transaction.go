package repository

import (
	"context"

	"iran-payment/internal/domain/model"
)

// TransactionRepository is the storage collaborator for transaction records.
//
// UpdateStatus is the single atomic compare-and-set guarding the
// pending -> terminal transition: implementations MUST apply the update only
// if the stored status still equals `from`, and return
// domain.ErrTransactionAlreadyFinalized otherwise. The orchestrator does not
// lock; it delegates that guarantee here.
type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	FindByCode(ctx context.Context, code string) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, tx *model.Transaction, from model.TransactionStatus) error
}
