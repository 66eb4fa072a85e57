package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinicdesk/paycore/app/models"
	"github.com/clinicdesk/paycore/internal/pkg/paycode"
)

const (
	// CodeCountdown is how long a payment code is presented as valid to
	// the patient.
	CodeCountdown = 15 * time.Minute
	// GracePeriod is the extra window after nominal expiry during which a
	// late-arriving transfer is still honored. An already-sent bank
	// transfer cannot be undone, so rejecting it would only create an
	// unmatchable payment.
	GracePeriod = 5 * time.Minute
	// evictionMargin keeps the cache entry alive past the grace window so
	// a transfer arriving at the edge of the grace window cannot race the
	// cache eviction.
	evictionMargin = time.Minute

	// CodeTTL is derived, never configured separately: the cache must
	// outlive countdown + grace or legitimate late payments become
	// unmatchable.
	CodeTTL = CodeCountdown + GracePeriod + evictionMargin
)

// Service orchestrates charge sessions, webhook reconciliation and status
// reads over the durable ledger and the ephemeral code cache.
type Service struct {
	repo    Repository
	codes   paycode.Store
	gen     *paycode.Generator
	gateway GatewayConfig
	now     func() time.Time
}

// NewService creates a payment service from its collaborators.
func NewService(repo Repository, codes paycode.Store, gateway GatewayConfig) *Service {
	return &Service{
		repo:    repo,
		codes:   codes,
		gen:     paycode.NewGenerator(codes),
		gateway: gateway,
		now:     time.Now,
	}
}

// NewServiceFromDB creates a payment service from a GORM DB handle and a
// code store.
func NewServiceFromDB(db *gorm.DB, codes paycode.Store, gateway GatewayConfig) *Service {
	return NewService(NewRepository(db), codes, gateway)
}

// SetClock overrides the service clock, used by expiry tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateCharge opens a charge session for an appointment: it supersedes any
// previous session, issues a fresh payment code, records a PENDING
// transaction and returns the QR reference for the gateway.
func (s *Service) CreateCharge(ctx context.Context, appointmentID uint, amount int64, actorID uint) (*ChargeSession, error) {
	appointment, err := s.repo.GetAppointment(appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if appointment.PatientID != actorID {
		return nil, ErrForbidden
	}

	billing, err := s.repo.GetBillingByAppointmentID(appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBillingNotFound
		}
		return nil, err
	}
	if billing.IsPaid() {
		return nil, ErrAlreadyPaid
	}

	// Late discount application: the caller-provided amount wins over the
	// amount recorded at booking time.
	if amount != billing.Amount {
		if err := s.repo.UpdateBillingForCharge(billing.ID, amount, models.PaymentMethodOnline); err != nil {
			return nil, err
		}
		billing.Amount = amount
	}

	// One active session per appointment: drop the previous code and fail
	// its PENDING transaction before opening the next session.
	if oldCode, _, err := s.codes.GetByAppointment(ctx, appointmentID); err == nil {
		if err := s.codes.Delete(ctx, oldCode); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, paycode.ErrCodeNotFound) {
		return nil, err
	}
	if err := s.repo.FailPendingTransactions(billing.ID, "superseded by new charge session"); err != nil {
		return nil, err
	}

	code, err := s.gen.Generate(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		BillingID: billing.ID,
		Reference: uuid.NewString(),
		Amount:    amount,
		Status:    models.TransactionStatusPending,
		Provider:  s.gateway.Provider,
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTransaction(txn); err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(CodeCountdown)
	pc := paycode.PaymentCode{
		BillingID:     billing.ID,
		AppointmentID: appointmentID,
		Amount:        amount,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}
	if err := s.codes.Set(ctx, code, pc, CodeTTL); err != nil {
		return nil, err
	}

	log.Infof("charge session opened: appointment=%d billing=%d transaction=%d actor=%d", appointmentID, billing.ID, txn.ID, actorID)

	return &ChargeSession{
		AppointmentID: appointmentID,
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Amount:        amount,
		PaymentCode:   code,
		QRCodeURL:     s.gateway.QRCodeURL(amount, code),
		ExpiresAt:     expiresAt,
	}, nil
}

// CancelCharge removes the active payment code for an appointment. The
// PENDING transaction is left as-is; if the transfer was already sent the
// money becomes unmatchable, which the stale-charge audit surfaces rather
// than this core silently patching it.
func (s *Service) CancelCharge(ctx context.Context, appointmentID uint, actorID uint) error {
	appointment, err := s.repo.GetAppointment(appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAppointmentNotFound
		}
		return err
	}
	if appointment.PatientID != actorID {
		return ErrForbidden
	}

	billing, err := s.repo.GetBillingByAppointmentID(appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBillingNotFound
		}
		return err
	}
	if billing.IsPaid() {
		return ErrAlreadyPaid
	}

	code, _, err := s.codes.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if err := s.codes.Delete(ctx, code); err != nil {
		return err
	}

	log.Infof("charge session cancelled: appointment=%d actor=%d", appointmentID, actorID)
	return nil
}

// HandleWebhook reconciles one gateway notification against the ledger.
// Safe under at-least-once, out-of-order delivery: a redelivered event
// fails ErrCodeAlreadyUsed before touching the ledger.
func (s *Service) HandleWebhook(ctx context.Context, event WebhookEvent) (*WebhookResult, error) {
	code, err := ExtractCode(event.Content)
	if err != nil {
		// Some gateways parse the code server-side into its own field. It
		// must be exactly one code and nothing else.
		fallback, fbErr := ExtractCode(event.Code)
		if fbErr != nil || fallback != event.Code {
			return nil, err
		}
		code = fallback
	}

	pc, err := s.codes.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if pc.IsUsed {
		return nil, ErrCodeAlreadyUsed
	}

	now := s.now()
	providerMessage := fmt.Sprintf("matched transfer %d via %s", event.ID, event.Gateway)
	if lateness := now.Sub(pc.ExpiresAt); lateness > 0 {
		// Honored anyway: the transfer already happened. Annotated for audit.
		providerMessage += fmt.Sprintf("; late transfer honored %s after expiry (grace %s)", lateness.Round(time.Second), GracePeriod)
	}

	billing, err := s.repo.GetBilling(pc.BillingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBillingNotFound
		}
		return nil, err
	}

	txn, err := s.repo.GetPendingTransactionByBillingID(billing.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	// Exact match only. Partial and over-payments need staff, not a guess.
	if txn.Amount != event.TransferAmount {
		return nil, ErrAmountMismatch
	}

	claimed, err := s.codes.MarkUsed(ctx, code)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrCodeAlreadyUsed
	}

	rawPayload, err := json.Marshal(event)
	if err != nil {
		rawPayload = []byte("{}")
	}

	apply := ApplyPaymentInput{
		TransactionID:         txn.ID,
		BillingID:             billing.ID,
		AppointmentID:         pc.AppointmentID,
		Provider:              event.Gateway,
		ProviderTransactionID: strconv.FormatInt(event.ID, 10),
		ProviderMessage:       providerMessage,
		RawWebhookPayload:     string(rawPayload),
	}
	if err := s.repo.ApplyPayment(apply); err != nil {
		// Give the claim back so the gateway's redelivery can retry.
		if releaseErr := s.codes.ReleaseUse(ctx, code); releaseErr != nil {
			log.Errorf("failed to release code claim after ledger error: code=%s err=%v", code, releaseErr)
		}
		return nil, err
	}

	log.Infof("payment applied: appointment=%d billing=%d transaction=%d gateway_id=%d", pc.AppointmentID, billing.ID, txn.ID, event.ID)

	return &WebhookResult{Success: true, TransactionID: txn.ID}, nil
}

// CheckStatus is a pure read of the billing payment state.
func (s *Service) CheckStatus(ctx context.Context, appointmentID uint) (*Status, error) {
	_ = ctx
	billing, err := s.repo.GetBillingByAppointmentID(appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBillingNotFound
		}
		return nil, err
	}
	return &Status{IsPaid: billing.IsPaid(), PaymentStatus: billing.Status}, nil
}
