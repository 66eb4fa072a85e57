package payment

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/clinicdesk/paycore/app/models"
	"github.com/clinicdesk/paycore/internal/pkg/paycode"
)

// fakeRepo is an in-memory ledger implementing Repository.
type fakeRepo struct {
	appointments map[uint]*models.Appointment
	billings     map[uint]*models.Billing
	transactions []*models.Transaction
	nextTxnID    uint
	applyErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		appointments: make(map[uint]*models.Appointment),
		billings:     make(map[uint]*models.Billing),
	}
}

func (f *fakeRepo) addAppointment(appointmentID, patientID uint, amount int64) *models.Billing {
	f.appointments[appointmentID] = &models.Appointment{
		ID:            appointmentID,
		PatientID:     patientID,
		PaymentStatus: models.PaymentStatusPending,
	}
	billingID := uint(len(f.billings) + 1)
	f.billings[billingID] = &models.Billing{
		ID:            billingID,
		AppointmentID: appointmentID,
		Amount:        amount,
		Status:        models.PaymentStatusPending,
	}
	return f.billings[billingID]
}

func (f *fakeRepo) GetAppointment(id uint) (*models.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) GetBilling(id uint) (*models.Billing, error) {
	b, ok := f.billings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) GetBillingByAppointmentID(appointmentID uint) (*models.Billing, error) {
	for _, b := range f.billings {
		if b.AppointmentID == appointmentID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateBillingForCharge(billingID uint, amount int64, paymentMethod string) error {
	b, ok := f.billings[billingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.Amount = amount
	b.PaymentMethod = paymentMethod
	return nil
}

func (f *fakeRepo) CreateTransaction(txn *models.Transaction) error {
	f.nextTxnID++
	txn.ID = f.nextTxnID
	txn.CreatedAt = time.Now()
	f.transactions = append(f.transactions, txn)
	return nil
}

func (f *fakeRepo) GetPendingTransactionByBillingID(billingID uint) (*models.Transaction, error) {
	for i := len(f.transactions) - 1; i >= 0; i-- {
		txn := f.transactions[i]
		if txn.BillingID == billingID && txn.Status == models.TransactionStatusPending {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FailPendingTransactions(billingID uint, providerMessage string) error {
	for _, txn := range f.transactions {
		if txn.BillingID == billingID && txn.Status == models.TransactionStatusPending {
			txn.Status = models.TransactionStatusFailed
			txn.ProviderMessage = providerMessage
		}
	}
	return nil
}

func (f *fakeRepo) ApplyPayment(in ApplyPaymentInput) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	var target *models.Transaction
	for _, txn := range f.transactions {
		if txn.ID == in.TransactionID && txn.Status == models.TransactionStatusPending {
			target = txn
			break
		}
	}
	if target == nil {
		return gorm.ErrRecordNotFound
	}
	target.Status = models.TransactionStatusSuccess
	target.Provider = in.Provider
	target.ProviderTransactionID = in.ProviderTransactionID
	target.ProviderMessage = in.ProviderMessage
	target.RawWebhookPayload = in.RawWebhookPayload
	f.billings[in.BillingID].Status = models.PaymentStatusPaid
	f.appointments[in.AppointmentID].PaymentStatus = models.PaymentStatusPaid
	return nil
}

func (f *fakeRepo) pendingCount(billingID uint) int {
	n := 0
	for _, txn := range f.transactions {
		if txn.BillingID == billingID && txn.Status == models.TransactionStatusPending {
			n++
		}
	}
	return n
}

var testGateway = GatewayConfig{
	Provider:      "sepay",
	QRBaseURL:     "https://qr.sepay.vn/img",
	AccountNumber: "0123456789",
	BankCode:      "VCB",
}

func newTestService() (*Service, *fakeRepo, *paycode.MemoryStore) {
	repo := newFakeRepo()
	store := paycode.NewMemoryStore()
	svc := NewService(repo, store, testGateway)
	return svc, repo, store
}

func webhookFor(code string, amount int64) WebhookEvent {
	return WebhookEvent{
		ID:             9001,
		Gateway:        "sepay",
		TransferType:   "in",
		TransferAmount: amount,
		Content:        fmt.Sprintf("CT DEN tu 970436 %s thanh toan kham", code),
	}
}

func TestCreateCharge_CodeShape(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)

	session, err := svc.CreateCharge(context.Background(), 42, 200000, 7)
	assert.NoError(t, err)
	assert.Len(t, session.PaymentCode, 10)
	assert.True(t, strings.HasPrefix(session.PaymentCode, "42"))
	assert.Equal(t, int64(200000), session.Amount)
	assert.Contains(t, session.QRCodeURL, "des="+session.PaymentCode)
	assert.Contains(t, session.QRCodeURL, "amount=200000")
	assert.WithinDuration(t, time.Now().Add(CodeCountdown), session.ExpiresAt, 2*time.Second)
}

func TestCreateCharge_UnknownAppointment(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateCharge(context.Background(), 42, 200000, 7)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCreateCharge_Forbidden(t *testing.T) {
	svc, repo, store := newTestService()
	billing := repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	// A foreign actor cannot open a session on someone else's appointment.
	_, err = svc.CreateCharge(ctx, 42, 1, 8)
	assert.ErrorIs(t, err, ErrForbidden)

	// The owner's session survived untouched: code still live, amount and
	// PENDING transaction unchanged.
	_, getErr := store.Get(ctx, session.PaymentCode)
	assert.NoError(t, getErr)
	assert.Equal(t, int64(200000), repo.billings[billing.ID].Amount)
	assert.Equal(t, 1, repo.pendingCount(billing.ID))
}

func TestCreateCharge_AlreadyPaid(t *testing.T) {
	svc, repo, _ := newTestService()
	billing := repo.addAppointment(42, 7, 200000)
	billing.Status = models.PaymentStatusPaid

	_, err := svc.CreateCharge(context.Background(), 42, 200000, 7)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestCreateCharge_AppliesLateDiscount(t *testing.T) {
	svc, repo, _ := newTestService()
	billing := repo.addAppointment(42, 7, 250000)

	session, err := svc.CreateCharge(context.Background(), 42, 200000, 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(200000), session.Amount)
	assert.Equal(t, int64(200000), billing.Amount)
	assert.Equal(t, models.PaymentMethodOnline, billing.PaymentMethod)
}

func TestCreateCharge_SupersedesPreviousSession(t *testing.T) {
	svc, repo, store := newTestService()
	billing := repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	first, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	second, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)
	assert.NotEqual(t, first.PaymentCode, second.PaymentCode)

	// The first code is gone, and only the new transaction is PENDING.
	_, err = store.Get(ctx, first.PaymentCode)
	assert.ErrorIs(t, err, paycode.ErrCodeNotFound)
	assert.Equal(t, 1, repo.pendingCount(billing.ID))

	// A transfer still carrying the first code can no longer be matched.
	_, err = svc.HandleWebhook(ctx, webhookFor(first.PaymentCode, 200000))
	assert.ErrorIs(t, err, paycode.ErrCodeNotFound)
}

func TestHandleWebhook_AppliesPayment(t *testing.T) {
	svc, repo, _ := newTestService()
	billing := repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	result, err := svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, session.TransactionID, result.TransactionID)

	assert.Equal(t, models.PaymentStatusPaid, repo.billings[billing.ID].Status)
	assert.Equal(t, models.PaymentStatusPaid, repo.appointments[42].PaymentStatus)

	txn := repo.transactions[0]
	assert.Equal(t, models.TransactionStatusSuccess, txn.Status)
	assert.Equal(t, "9001", txn.ProviderTransactionID)
	assert.Contains(t, txn.RawWebhookPayload, session.PaymentCode)
}

func TestHandleWebhook_Idempotent(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	event := webhookFor(session.PaymentCode, 200000)
	_, err = svc.HandleWebhook(ctx, event)
	assert.NoError(t, err)

	// Redelivery of the identical event never double-applies.
	_, err = svc.HandleWebhook(ctx, event)
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)

	successes := 0
	for _, txn := range repo.transactions {
		if txn.Status == models.TransactionStatusSuccess {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

func TestHandleWebhook_AmountMismatch(t *testing.T) {
	svc, repo, _ := newTestService()
	billing := repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	_, err = svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 150000))
	assert.ErrorIs(t, err, ErrAmountMismatch)

	// Nothing moved.
	assert.Equal(t, models.PaymentStatusPending, repo.billings[billing.ID].Status)
	assert.Equal(t, models.TransactionStatusPending, repo.transactions[0].Status)

	// The code stays claimable for the corrected transfer.
	_, err = svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.NoError(t, err)
}

func TestHandleWebhook_NoCodeInContent(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		ID:             1,
		Gateway:        "sepay",
		TransferAmount: 200000,
		Content:        "thanh toan kham benh",
	})
	assert.ErrorIs(t, err, ErrCodeMissing)
}

func TestHandleWebhook_GatewayParsedCodeFallback(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	event := webhookFor(session.PaymentCode, 200000)
	event.Content = "noi dung bi cat"
	event.Code = session.PaymentCode

	result, err := svc.HandleWebhook(ctx, event)
	assert.NoError(t, err)
	assert.True(t, result.Success)
}

func TestHandleWebhook_RejectsNonNumericGatewayCode(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	_, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	// Ten characters is not enough; the fallback must be ten digits.
	event := webhookFor("", 200000)
	event.Content = "noi dung bi cat"
	event.Code = "ABCDE12345"

	_, err = svc.HandleWebhook(ctx, event)
	assert.ErrorIs(t, err, ErrCodeMissing)

	// Extra characters around a valid run are rejected too.
	event.Code = "x4200012345"
	_, err = svc.HandleWebhook(ctx, event)
	assert.ErrorIs(t, err, ErrCodeMissing)
}

func TestHandleWebhook_UnknownCode(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.HandleWebhook(context.Background(), webhookFor("9999999999", 200000))
	assert.ErrorIs(t, err, paycode.ErrCodeNotFound)
}

func TestHandleWebhook_LateWithinGrace(t *testing.T) {
	svc, repo, store := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	start := time.Now()
	svc.SetClock(func() time.Time { return start })
	store.SetClock(func() time.Time { return start })

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	// Four minutes past expiry: inside the grace window, honored but flagged.
	late := session.ExpiresAt.Add(4 * time.Minute)
	svc.SetClock(func() time.Time { return late })
	store.SetClock(func() time.Time { return late })

	result, err := svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, repo.transactions[0].ProviderMessage, "late transfer honored")
}

func TestHandleWebhook_AfterEviction(t *testing.T) {
	svc, repo, store := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	start := time.Now()
	svc.SetClock(func() time.Time { return start })
	store.SetClock(func() time.Time { return start })

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	// Past countdown + grace + margin: the cache entry is gone.
	gone := start.Add(CodeTTL + time.Minute)
	svc.SetClock(func() time.Time { return gone })
	store.SetClock(func() time.Time { return gone })

	_, err = svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.ErrorIs(t, err, paycode.ErrCodeNotFound)
}

func TestHandleWebhook_LedgerFailureReleasesClaim(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	repo.applyErr = gorm.ErrInvalidTransaction
	_, err = svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.Error(t, err)

	// The gateway retries; the claim must have been released.
	repo.applyErr = nil
	result, err := svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.NoError(t, err)
	assert.True(t, result.Success)
}

func TestCancelCharge_ThenWebhookFails(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	assert.NoError(t, svc.CancelCharge(ctx, 42, 7))

	_, err = svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.ErrorIs(t, err, paycode.ErrCodeNotFound)
}

func TestCancelCharge_Forbidden(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	_, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.CancelCharge(ctx, 42, 8), ErrForbidden)
}

func TestCancelCharge_NoActiveCode(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)

	assert.ErrorIs(t, svc.CancelCharge(context.Background(), 42, 7), paycode.ErrCodeNotFound)
}

func TestCancelCharge_AlreadyPaid(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)
	_, err = svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.CancelCharge(ctx, 42, 7), ErrAlreadyPaid)
}

func TestCheckStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addAppointment(42, 7, 200000)
	ctx := context.Background()

	status, err := svc.CheckStatus(ctx, 42)
	assert.NoError(t, err)
	assert.False(t, status.IsPaid)
	assert.Equal(t, models.PaymentStatusPending, status.PaymentStatus)

	session, err := svc.CreateCharge(ctx, 42, 200000, 7)
	assert.NoError(t, err)
	_, err = svc.HandleWebhook(ctx, webhookFor(session.PaymentCode, 200000))
	assert.NoError(t, err)

	status, err = svc.CheckStatus(ctx, 42)
	assert.NoError(t, err)
	assert.True(t, status.IsPaid)
	assert.Equal(t, models.PaymentStatusPaid, status.PaymentStatus)

	_, err = svc.CheckStatus(ctx, 99)
	assert.ErrorIs(t, err, ErrBillingNotFound)
}

func TestCodeTTLCoversGrace(t *testing.T) {
	assert.Greater(t, CodeTTL, CodeCountdown+GracePeriod)
}
