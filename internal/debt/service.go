package debt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/armada-dist/armada/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStore(ctx context.Context, id int64) (Store, error)
	ListPayments(ctx context.Context, storeID int64, limit int) ([]Payment, error)
	TotalPaid(ctx context.Context, storeID int64) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns store debt and its payment history. Payments and charges
// are immutable once written; the denormalised Store.Debt is only ever
// touched here, under a row lock.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	policy OverpaymentPolicy
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	OverpaymentPolicy OverpaymentPolicy
}

// NewService builds Service. An unset policy defaults to clamp, matching
// the historical behaviour.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	policy := cfg.OverpaymentPolicy
	if !policy.IsValid() {
		policy = PolicyClamp
	}
	return &Service{repo: repo, audit: audit, policy: policy}
}

// RecordPayment appends a payment and reduces the store's debt. Under the
// clamp policy debt floors at zero while the payment row still records the
// full amount; under reject an overpayment fails the whole operation.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if !input.Amount.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	if !input.Method.IsValid() {
		return Payment{}, shared.Validationf("unknown payment method %q", input.Method)
	}
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		store, err := tx.GetStoreForUpdate(ctx, input.StoreID)
		if err != nil {
			return err
		}
		newDebt := store.Debt.Sub(input.Amount)
		if newDebt.IsNegative() {
			if s.policy == PolicyReject {
				return fmt.Errorf("store %d owes %s: %w", store.ID, store.Debt.String(), ErrOverpayment)
			}
			newDebt = decimal.Zero
		}
		if err := tx.UpdateStoreDebt(ctx, store.ID, newDebt); err != nil {
			return err
		}
		payment = Payment{
			ReceiptNumber: uuid.NewString(),
			StoreID:       input.StoreID,
			OrderID:       input.OrderID,
			Amount:        input.Amount,
			PaymentDate:   paymentDate,
			Method:        input.Method,
			Notes:         input.Notes,
			CreatedAt:     time.Now().UTC(),
		}
		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "debt:payment",
			Entity:   "debt_payment",
			EntityID: payment.ReceiptNumber,
			Meta: map[string]any{
				"store_id": payment.StoreID,
				"order_id": payment.OrderID,
				"amount":   payment.Amount.String(),
				"method":   string(payment.Method),
			},
		})
	}
	return payment, nil
}

// RecordCharge appends a charge and raises the store's debt, keeping the
// aggregate derivable from the ledger.
func (s *Service) RecordCharge(ctx context.Context, input ChargeInput) (Charge, error) {
	if !input.Amount.IsPositive() {
		return Charge{}, ErrInvalidAmount
	}
	var charge Charge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		store, err := tx.GetStoreForUpdate(ctx, input.StoreID)
		if err != nil {
			return err
		}
		if err := tx.UpdateStoreDebt(ctx, store.ID, store.Debt.Add(input.Amount)); err != nil {
			return err
		}
		charge = Charge{
			StoreID:   input.StoreID,
			OrderID:   input.OrderID,
			Amount:    input.Amount,
			Notes:     input.Notes,
			CreatedAt: time.Now().UTC(),
		}
		id, err := tx.InsertCharge(ctx, charge)
		if err != nil {
			return err
		}
		charge.ID = id
		return nil
	})
	if err != nil {
		return Charge{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "debt:charge",
			Entity:   "debt_charge",
			EntityID: fmt.Sprintf("%d", charge.ID),
			Meta: map[string]any{
				"store_id": charge.StoreID,
				"order_id": charge.OrderID,
				"amount":   charge.Amount.String(),
			},
		})
	}
	return charge, nil
}

// OutstandingDebt returns the store's current debt.
func (s *Service) OutstandingDebt(ctx context.Context, storeID int64) (decimal.Decimal, error) {
	store, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return decimal.Zero, err
	}
	return store.Debt, nil
}

// TotalPaid sums all payments recorded for a store.
func (s *Service) TotalPaid(ctx context.Context, storeID int64) (decimal.Decimal, error) {
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return decimal.Zero, err
	}
	return s.repo.TotalPaid(ctx, storeID)
}

// ListPayments returns payment history for a store.
func (s *Service) ListPayments(ctx context.Context, storeID int64, limit int) ([]Payment, error) {
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, storeID, limit)
}
