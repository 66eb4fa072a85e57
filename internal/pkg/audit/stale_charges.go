package audit

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/clinicdesk/paycore/app/models"
	"github.com/clinicdesk/paycore/internal/pkg/payment"
)

// Sweeper periodically reports charge sessions whose code expired without a
// matching transfer. It mutates nothing: a transfer whose code was
// cancelled or evicted before the webhook arrived is a reconciliation gap
// for staff to resolve, not something to patch automatically.
type Sweeper struct {
	db   *gorm.DB
	cron *cron.Cron
}

func NewSweeper(db *gorm.DB) *Sweeper {
	return &Sweeper{db: db, cron: cron.New()}
}

// Start schedules the sweep every 10 minutes.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@every 10m", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) sweep() {
	stale, err := FindStale(s.db, time.Now())
	if err != nil {
		log.Errorf("stale charge sweep failed: %v", err)
		return
	}
	for _, txn := range stale {
		log.Warnf("unreconciled charge session: transaction=%d billing=%d reference=%s opened=%s",
			txn.ID, txn.BillingID, txn.Reference, txn.CreatedAt.Format(time.RFC3339))
	}
}

// FindStale returns PENDING transactions older than countdown+grace whose
// billing is still unpaid. Their payment code is gone from the cache by
// now, so any transfer carrying it can no longer be matched.
func FindStale(db *gorm.DB, now time.Time) ([]models.Transaction, error) {
	cutoff := now.Add(-(payment.CodeCountdown + payment.GracePeriod))

	var stale []models.Transaction
	err := db.Model(&models.Transaction{}).
		Joins("JOIN billings ON billings.id = transactions.billing_id").
		Where("transactions.status = ?", models.TransactionStatusPending).
		Where("billings.status = ?", models.PaymentStatusPending).
		Where("transactions.created_at < ?", cutoff).
		Find(&stale).Error
	return stale, err
}
