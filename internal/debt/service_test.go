package debt

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-dist/armada/internal/shared"
)

type fakeRepo struct {
	stores   map[int64]*Store
	payments []Payment
	charges  []Charge
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stores: map[int64]*Store{}, nextID: 500}
}

func (r *fakeRepo) seed(s Store) {
	cp := s
	r.stores[s.ID] = &cp
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := map[int64]*Store{}
	for id, s := range r.stores {
		cp := *s
		snapshot[id] = &cp
	}
	paymentsLen, chargesLen := len(r.payments), len(r.charges)
	if err := fn(ctx, &fakeTx{repo: r}); err != nil {
		r.stores = snapshot
		r.payments = r.payments[:paymentsLen]
		r.charges = r.charges[:chargesLen]
		return err
	}
	return nil
}

func (r *fakeRepo) GetStore(_ context.Context, id int64) (Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return Store{}, shared.ErrNotFound
	}
	return *s, nil
}

func (r *fakeRepo) ListPayments(_ context.Context, storeID int64, _ int) ([]Payment, error) {
	out := []Payment{}
	for _, p := range r.payments {
		if p.StoreID == storeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) TotalPaid(_ context.Context, storeID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range r.payments {
		if p.StoreID == storeID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) GetStoreForUpdate(_ context.Context, storeID int64) (Store, error) {
	s, ok := t.repo.stores[storeID]
	if !ok {
		return Store{}, shared.ErrNotFound
	}
	return *s, nil
}

func (t *fakeTx) UpdateStoreDebt(_ context.Context, storeID int64, debt decimal.Decimal) error {
	s, ok := t.repo.stores[storeID]
	if !ok {
		return shared.ErrNotFound
	}
	s.Debt = debt
	return nil
}

func (t *fakeTx) InsertPayment(_ context.Context, p Payment) (int64, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	t.repo.payments = append(t.repo.payments, p)
	return p.ID, nil
}

func (t *fakeTx) InsertCharge(_ context.Context, c Charge) (int64, error) {
	t.repo.nextID++
	c.ID = t.repo.nextID
	t.repo.charges = append(t.repo.charges, c)
	return c.ID, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRecordPaymentReducesDebt(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Store{ID: 1, Name: "Toko Sinar", Debt: dec("150000.00"), IsActive: true})
	svc := NewService(repo, nil, ServiceConfig{})

	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		StoreID: 1,
		Amount:  dec("50000.00"),
		Method:  MethodCash,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, payment.ReceiptNumber)
	assert.True(t, repo.stores[1].Debt.Equal(dec("100000.00")), "debt = %s", repo.stores[1].Debt)
	require.Len(t, repo.payments, 1)
	assert.True(t, repo.payments[0].Amount.Equal(dec("50000.00")))
}

func TestRecordPaymentClampsOverpayment(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Store{ID: 1, Name: "Toko Sinar", Debt: dec("30000.00"), IsActive: true})
	svc := NewService(repo, nil, ServiceConfig{OverpaymentPolicy: PolicyClamp})

	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		StoreID: 1,
		Amount:  dec("50000.00"),
		Method:  MethodTransfer,
	})
	require.NoError(t, err)

	// Debt floors at zero while the payment row keeps the full amount.
	assert.True(t, repo.stores[1].Debt.IsZero(), "debt = %s", repo.stores[1].Debt)
	assert.True(t, payment.Amount.Equal(dec("50000.00")))
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Store{ID: 1, Name: "Toko Sinar", Debt: dec("30000.00"), IsActive: true})
	svc := NewService(repo, nil, ServiceConfig{OverpaymentPolicy: PolicyReject})

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		StoreID: 1,
		Amount:  dec("50000.00"),
		Method:  MethodTransfer,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverpayment)

	// Rejected payment leaves both the debt and the ledger untouched.
	assert.True(t, repo.stores[1].Debt.Equal(dec("30000.00")))
	assert.Empty(t, repo.payments)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Store{ID: 1, Name: "Toko Sinar", Debt: dec("10000.00"), IsActive: true})
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{StoreID: 1, Amount: decimal.Zero, Method: MethodCash})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, PaymentInput{StoreID: 1, Amount: dec("-5.00"), Method: MethodCash})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, PaymentInput{StoreID: 1, Amount: dec("5.00"), Method: "crypto"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, PaymentInput{StoreID: 99, Amount: dec("5.00"), Method: MethodCash})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordChargeRaisesDebt(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Store{ID: 1, Name: "Toko Sinar", Debt: dec("10000.00"), IsActive: true})
	svc := NewService(repo, nil, ServiceConfig{})

	charge, err := svc.RecordCharge(context.Background(), ChargeInput{
		StoreID: 1,
		OrderID: 7,
		Amount:  dec("25000.00"),
	})
	require.NoError(t, err)

	assert.True(t, repo.stores[1].Debt.Equal(dec("35000.00")), "debt = %s", repo.stores[1].Debt)
	assert.EqualValues(t, 7, charge.OrderID)
}

func TestOutstandingDebtAndTotalPaid(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Store{ID: 1, Name: "Toko Sinar", Debt: dec("60000.00"), IsActive: true})
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{StoreID: 1, Amount: dec("10000.00"), Method: MethodCash})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, PaymentInput{StoreID: 1, Amount: dec("15000.00"), Method: MethodCheck})
	require.NoError(t, err)

	outstanding, err := svc.OutstandingDebt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(dec("35000.00")), "outstanding = %s", outstanding)

	totalPaid, err := svc.TotalPaid(ctx, 1)
	require.NoError(t, err)
	assert.True(t, totalPaid.Equal(dec("25000.00")), "total paid = %s", totalPaid)

	payments, err := svc.ListPayments(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}
