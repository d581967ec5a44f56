package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"iran-payment/internal/domain"
	"iran-payment/internal/domain/model"
	"iran-payment/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

func (r *transactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, code, status, amount, currency, gateway_name, gateway_data,
  tracking_code, reference_number, payable_type, payable_id, description,
  created_at, updated_at, paid_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	gatewayData, err := json.Marshal(t.GatewayData)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	var payableType, payableID *string
	if t.Payable != nil {
		payableType, payableID = &t.Payable.Type, &t.Payable.ID
	}

	if _, err := r.pool.Exec(ctx, q,
		t.ID, t.Code, t.Status, t.Amount, t.Currency, t.GatewayName, gatewayData,
		t.TrackingCode, t.ReferenceNumber, payableType, payableID, t.Description,
		t.CreatedAt, t.UpdatedAt, t.PaidAt,
	); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByCode(ctx context.Context, code string) (*model.Transaction, error) {
	const q = `
SELECT id, code, status, amount, currency, gateway_name, gateway_data,
       tracking_code, reference_number, payable_type, payable_id, description,
       created_at, updated_at, paid_at
FROM transactions WHERE code=$1;`

	row := r.pool.QueryRow(ctx, q, code)

	t := &model.Transaction{}
	var gatewayData []byte
	var payableType, payableID *string
	if err := row.Scan(
		&t.ID, &t.Code, &t.Status, &t.Amount, &t.Currency, &t.GatewayName, &gatewayData,
		&t.TrackingCode, &t.ReferenceNumber, &payableType, &payableID, &t.Description,
		&t.CreatedAt, &t.UpdatedAt, &t.PaidAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, domain.ErrOperationFailed
	}
	if len(gatewayData) > 0 {
		if err := json.Unmarshal(gatewayData, &t.GatewayData); err != nil {
			return nil, domain.ErrOperationFailed
		}
	}
	if payableType != nil && payableID != nil {
		t.Payable = &model.PayableRef{Type: *payableType, ID: *payableID}
	}
	return t, nil
}

// UpdateStatus persists the terminal transition as a compare-and-set on the
// prior status: rows move out of `from` exactly once, a concurrent confirm
// that already finalized the record surfaces ErrTransactionAlreadyFinalized.
func (r *transactionRepo) UpdateStatus(ctx context.Context, t *model.Transaction, from model.TransactionStatus) error {
	const q = `
UPDATE transactions SET
  status=$3, gateway_data=$4, tracking_code=$5, reference_number=$6,
  updated_at=NOW(), paid_at=$7
WHERE code=$1 AND status=$2;`

	gatewayData, err := json.Marshal(t.GatewayData)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	tag, err := r.pool.Exec(ctx, q,
		t.Code, from, t.Status, gatewayData, t.TrackingCode, t.ReferenceNumber, t.PaidAt,
	)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionAlreadyFinalized
	}
	return nil
}
