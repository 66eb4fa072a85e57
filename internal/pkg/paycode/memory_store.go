package paycode

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	pc      PaymentCode
	evictAt time.Time
	claimed bool
}

// MemoryStore is an in-process Store with lazy TTL eviction. The service
// tests run against it, and it backs local development without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	byAppt  map[uint]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		byAppt:  make(map[uint]string),
		now:     time.Now,
	}
}

// SetClock overrides the store clock, used by expiry tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the entry if present and not past its TTL, evicting otherwise.
func (s *MemoryStore) live(code string) *memoryEntry {
	e, ok := s.entries[code]
	if !ok {
		return nil
	}
	if s.now().After(e.evictAt) {
		delete(s.entries, code)
		if s.byAppt[e.pc.AppointmentID] == code {
			delete(s.byAppt, e.pc.AppointmentID)
		}
		return nil
	}
	return e
}

func (s *MemoryStore) Get(_ context.Context, code string) (*PaymentCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(code)
	if e == nil {
		return nil, ErrCodeNotFound
	}
	pc := e.pc
	return &pc, nil
}

func (s *MemoryStore) GetByAppointment(_ context.Context, appointmentID uint) (string, *PaymentCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.byAppt[appointmentID]
	if !ok {
		return "", nil, ErrCodeNotFound
	}
	e := s.live(code)
	if e == nil {
		delete(s.byAppt, appointmentID)
		return "", nil, ErrCodeNotFound
	}
	pc := e.pc
	return code, &pc, nil
}

func (s *MemoryStore) Set(_ context.Context, code string, pc PaymentCode, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[code] = &memoryEntry{pc: pc, evictAt: s.now().Add(ttl)}
	s.byAppt[pc.AppointmentID] = code
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[code]; ok && s.byAppt[e.pc.AppointmentID] == code {
		delete(s.byAppt, e.pc.AppointmentID)
	}
	delete(s.entries, code)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live(code) != nil, nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(code)
	if e == nil {
		return false, ErrCodeNotFound
	}
	if e.claimed {
		return false, nil
	}
	e.claimed = true
	e.pc.IsUsed = true
	return true, nil
}

func (s *MemoryStore) ReleaseUse(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(code)
	if e == nil {
		return nil
	}
	e.claimed = false
	e.pc.IsUsed = false
	return nil
}
