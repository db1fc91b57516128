package fleet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/stake-plus/catchfleet/src/store"
	"github.com/stake-plus/catchfleet/src/unit"
)

var ErrNotLive = errors.New("unit is not running")

// Store is what the supervisor needs from the account/log store.
type Store interface {
	unit.Store
	ListAccounts(ctx context.Context) ([]store.Account, error)
}

type Config struct {
	// RestoreCaptchaAsStopped parks units that were captcha-blocked at
	// shutdown instead of restarting them.
	RestoreCaptchaAsStopped bool
}

// Supervisor owns at most one live unit per account id.
type Supervisor struct {
	store   Store
	factory unit.TransportFactory
	opts    unit.Options
	cfg     Config

	mu    sync.Mutex
	units map[uint]*unit.Unit
	locks map[uint]*idLock
}

// idLock serializes lifecycle changes for one account. The entry lives in
// the map only while someone holds or waits for it.
type idLock struct {
	mu   sync.Mutex
	refs int
}

func New(st Store, factory unit.TransportFactory, opts unit.Options, cfg Config) *Supervisor {
	return &Supervisor{
		store:   st,
		factory: factory,
		opts:    opts,
		cfg:     cfg,
		units:   make(map[uint]*unit.Unit),
		locks:   make(map[uint]*idLock),
	}
}

func (s *Supervisor) acquire(id uint) *idLock {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &idLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Supervisor) release(id uint, l *idLock) {
	l.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

func (s *Supervisor) get(id uint) *unit.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units[id]
}

func (s *Supervisor) take(id uint) *unit.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.units[id]
	delete(s.units, id)
	return u
}

// StartBot replaces any live unit for the account with a freshly started one.
func (s *Supervisor) StartBot(ctx context.Context, acct store.Account) error {
	l := s.acquire(acct.ID)
	defer s.release(acct.ID, l)

	if old := s.take(acct.ID); old != nil {
		old.Stop(ctx)
	}

	tr, err := s.factory(acct)
	if err != nil {
		id := acct.ID
		if lerr := s.store.AppendLog(ctx, &id, store.LevelError, fmt.Sprintf("Login failed: %v", err)); lerr != nil {
			log.Printf("fleet: account %d: append log: %v", acct.ID, lerr)
		}
		if _, uerr := s.store.UpdateAccount(ctx, acct.ID, store.StatusChange(store.StatusStopped, "")); uerr != nil {
			log.Printf("fleet: account %d: persist stopped: %v", acct.ID, uerr)
		}
		return &unit.LoginError{Err: err}
	}

	u := unit.New(acct, s.store, tr, s.opts)
	if err := u.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.units[acct.ID] = u
	s.mu.Unlock()
	log.Printf("fleet: account %d (%s) started, run %s", acct.ID, acct.Name, u.RunID())
	return nil
}

// StopBot stops and forgets the live unit. Absent units are a no-op.
func (s *Supervisor) StopBot(ctx context.Context, id uint) {
	l := s.acquire(id)
	defer s.release(id, l)

	if u := s.take(id); u != nil {
		u.Stop(ctx)
		log.Printf("fleet: account %d stopped", id)
	}
}

func (s *Supervisor) UpdateConfig(id uint, acct store.Account) error {
	u := s.get(id)
	if u == nil {
		return nil
	}
	return u.UpdateConfig(acct)
}

func (s *Supervisor) ResumeAfterCaptcha(ctx context.Context, id uint) error {
	u := s.get(id)
	if u == nil {
		return nil
	}
	return u.Resume(ctx)
}

func (s *Supervisor) ExecuteCommand(ctx context.Context, id uint, kind, payload string) error {
	u := s.get(id)
	if u == nil {
		return ErrNotLive
	}
	return u.ExecuteCommand(ctx, kind, payload)
}

// Live reports whether a unit is registered for id.
func (s *Supervisor) Live(id uint) bool {
	return s.get(id) != nil
}

func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}

// Phase returns the in-memory phase of a live unit, or stopped.
func (s *Supervisor) Phase(id uint) store.Status {
	u := s.get(id)
	if u == nil {
		return store.StatusStopped
	}
	return u.Phase()
}

// RestoreOnBoot restarts every account that was live when the process last
// exited. Failures are recorded per account and never abort the rest.
func (s *Supervisor) RestoreOnBoot(ctx context.Context) (int, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("fleet: list accounts: %w", err)
	}

	restored := 0
	for _, acct := range accounts {
		switch acct.Status {
		case store.StatusRunning, store.StatusResting:
		case store.StatusCaptcha:
			if s.cfg.RestoreCaptchaAsStopped {
				s.park(ctx, acct.ID, "Was captcha-blocked at shutdown; left stopped.")
				continue
			}
		default:
			continue
		}

		if err := s.StartBot(ctx, acct); err != nil {
			log.Printf("fleet: restore account %d (%s) failed: %v", acct.ID, acct.Name, err)
			s.park(ctx, acct.ID, fmt.Sprintf("Restore failed: %v", err))
			continue
		}
		restored++
	}
	log.Printf("fleet: restored %d units", restored)
	return restored, nil
}

func (s *Supervisor) park(ctx context.Context, id uint, reason string) {
	if _, err := s.store.UpdateAccount(ctx, id, store.StatusChange(store.StatusStopped, "")); err != nil {
		log.Printf("fleet: account %d: persist stopped: %v", id, err)
	}
	if err := s.store.AppendLog(ctx, &id, store.LevelError, reason); err != nil {
		log.Printf("fleet: account %d: append log: %v", id, err)
	}
}

// StopAll stops every live unit without touching persisted status, so the
// next boot restores them.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]uint, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			s.StopBot(ctx, id)
		}(id)
	}
	wg.Wait()
}
