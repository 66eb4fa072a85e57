package paycode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	pc := PaymentCode{BillingID: 3, AppointmentID: 42, Amount: 200000, ExpiresAt: time.Now().Add(15 * time.Minute)}
	assert.NoError(t, store.Set(ctx, "4200012345", pc, time.Hour))

	got, err := store.Get(ctx, "4200012345")
	assert.NoError(t, err)
	assert.Equal(t, uint(42), got.AppointmentID)
	assert.False(t, got.IsUsed)

	code, byAppt, err := store.GetByAppointment(ctx, 42)
	assert.NoError(t, err)
	assert.Equal(t, "4200012345", code)
	assert.Equal(t, pc.BillingID, byAppt.BillingID)

	exists, err := store.Exists(ctx, "4200012345")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStore_DeleteRemovesIndex(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, store.Set(ctx, "4200012345", PaymentCode{AppointmentID: 42}, time.Hour))
	assert.NoError(t, store.Delete(ctx, "4200012345"))

	_, err := store.Get(ctx, "4200012345")
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, _, err = store.GetByAppointment(ctx, 42)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestMemoryStore_TTLEviction(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.SetClock(func() time.Time { return now })
	assert.NoError(t, store.Set(ctx, "4200012345", PaymentCode{AppointmentID: 42}, 21*time.Minute))

	store.SetClock(func() time.Time { return now.Add(20 * time.Minute) })
	_, err := store.Get(ctx, "4200012345")
	assert.NoError(t, err)

	store.SetClock(func() time.Time { return now.Add(22 * time.Minute) })
	_, err = store.Get(ctx, "4200012345")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestMemoryStore_MarkUsedClaimsOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, store.Set(ctx, "4200012345", PaymentCode{AppointmentID: 42}, time.Hour))

	claimed, err := store.MarkUsed(ctx, "4200012345")
	assert.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.MarkUsed(ctx, "4200012345")
	assert.NoError(t, err)
	assert.False(t, claimed)

	got, err := store.Get(ctx, "4200012345")
	assert.NoError(t, err)
	assert.True(t, got.IsUsed)
}

func TestMemoryStore_ReleaseUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, store.Set(ctx, "4200012345", PaymentCode{AppointmentID: 42}, time.Hour))

	claimed, err := store.MarkUsed(ctx, "4200012345")
	assert.NoError(t, err)
	assert.True(t, claimed)

	assert.NoError(t, store.ReleaseUse(ctx, "4200012345"))

	claimed, err = store.MarkUsed(ctx, "4200012345")
	assert.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryStore_MarkUsedMissingCode(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.MarkUsed(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}
