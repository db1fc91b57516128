package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/stake-plus/catchfleet/src/clock"
	"github.com/stake-plus/catchfleet/src/data"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("account not found")

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)

// Publisher receives a copy of every log entry and status change.
type Publisher interface {
	Publish(ctx context.Context, payload map[string]interface{}) error
}

// Store is the gorm-backed account and log repository.
type Store struct {
	db        *gorm.DB
	sealer    *data.Sealer
	publisher Publisher
	clock     clock.Clock
}

type Option func(*Store)

func WithSealer(s *data.Sealer) Option { return func(st *Store) { st.sealer = s } }

func WithPublisher(p Publisher) Option { return func(st *Store) { st.publisher = p } }

func WithClock(c clock.Clock) Option { return func(st *Store) { st.clock = c } }

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, sealer: data.NewSealer(""), clock: clock.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Models lists every table owned by the store, in migration order.
func Models() []interface{} {
	return []interface{}{&Account{}, &LogEntry{}, &data.Setting{}}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.db.WithContext(ctx).Order("id").Find(&accounts).Error; err != nil {
		return nil, err
	}
	for i := range accounts {
		if err := s.open(&accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (s *Store) GetAccount(ctx context.Context, id uint) (*Account, error) {
	var acct Account
	err := s.db.WithContext(ctx).First(&acct, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.open(&acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// CreateAccount inserts a new stopped account with zeroed counters.
func (s *Store) CreateAccount(ctx context.Context, acct *Account) error {
	plain := acct.Token
	sealed, err := s.sealer.Seal(plain)
	if err != nil {
		return err
	}

	acct.ID = 0
	acct.Status = StatusStopped
	acct.CaptchaURL = nil
	acct.TotalCaught, acct.TotalCoins, acct.TotalShiny = 0, 0, 0
	acct.TotalLegendary, acct.TotalMythical, acct.TotalNormal = 0, 0, 0
	if acct.OwnerIDs == nil {
		acct.OwnerIDs = []string{}
	}
	now := s.clock.Now()
	acct.CreatedAt = now
	acct.LastActive = &now

	acct.Token = sealed
	err = s.db.WithContext(ctx).Create(acct).Error
	acct.Token = plain
	return err
}

// UpdateAccount applies a partial update and returns the fresh row.
func (s *Store) UpdateAccount(ctx context.Context, id uint, changes Changes) (*Account, error) {
	if _, err := s.GetAccount(ctx, id); err != nil {
		return nil, err
	}

	cols := make(map[string]interface{}, len(changes))
	for k, v := range changes {
		cols[k] = v
	}

	if tok, ok := cols[ColToken].(string); ok {
		sealed, err := s.sealer.Seal(tok)
		if err != nil {
			return nil, err
		}
		cols[ColToken] = sealed
	}

	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		// serialized columns go through a struct update so the json serializer applies
		if owners, ok := cols[ColOwnerIDs]; ok {
			delete(cols, ColOwnerIDs)
			ids, _ := owners.([]string)
			if ids == nil {
				ids = []string{}
			}
			if err := tx.Model(&Account{ID: id}).Select(ColOwnerIDs).Updates(&Account{OwnerIDs: ids}).Error; err != nil {
				return err
			}
		}
		if len(cols) == 0 {
			return nil
		}
		return tx.Model(&Account{}).Where("id = ?", id).Updates(cols).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update account %d: %w", id, err)
	}

	if status, ok := changes[ColStatus]; ok {
		s.publish(ctx, map[string]interface{}{
			"kind":       "status",
			"account_id": strconv.FormatUint(uint64(id), 10),
			"status":     fmt.Sprint(status),
			"time":       s.clock.Now().Unix(),
		})
	}

	return s.GetAccount(ctx, id)
}

func (s *Store) DeleteAccount(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&LogEntry{}).Where("account_id = ?", id).Update("account_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&Account{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendLog writes an immutable log entry; accountID is nil for fleet-wide entries.
func (s *Store) AppendLog(ctx context.Context, accountID *uint, level Level, content string) error {
	entry := LogEntry{
		AccountID: accountID,
		Level:     level,
		Content:   content,
		Timestamp: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}

	payload := map[string]interface{}{
		"kind":    "log",
		"type":    string(level),
		"content": content,
		"time":    entry.Timestamp.Unix(),
	}
	if accountID != nil {
		payload["account_id"] = strconv.FormatUint(uint64(*accountID), 10)
	}
	s.publish(ctx, payload)
	return nil
}

// ListLogs returns the newest entries first, optionally for one account.
func (s *Store) ListLogs(ctx context.Context, accountID *uint, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	q := s.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").Limit(limit)
	if accountID != nil {
		q = q.Where("account_id = ?", *accountID)
	}

	var entries []LogEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) open(acct *Account) error {
	tok, err := s.sealer.Open(acct.Token)
	if err != nil {
		return fmt.Errorf("account %d: %w", acct.ID, err)
	}
	acct.Token = tok
	return nil
}

func (s *Store) publish(ctx context.Context, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, payload); err != nil {
		log.Printf("store: publish %s event failed: %v", payload["kind"], err)
	}
}
