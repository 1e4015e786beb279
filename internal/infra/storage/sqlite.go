package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"paper_trade/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists the ledger state in SQLite
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance at dbPath
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite behaves best with a single writer connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	// Auto Migration
	if err := db.AutoMigrate(
		&domain.Account{},
		&domain.Holding{},
		&domain.TradingPair{},
		&domain.PriceObservation{},
		&domain.Trade{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// ======================================================================================
// Pair Operations
// ======================================================================================

// GetPair retrieves a trading pair by base/quote
func (s *Storage) GetPair(base, quote string) (*domain.TradingPair, error) {
	var pair domain.TradingPair
	err := s.db.First(&pair, "base = ? AND quote = ?", base, quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &pair, err
}

// GetOrCreatePair retrieves a pair, creating it with a zero rate if missing
func (s *Storage) GetOrCreatePair(base, quote string) (*domain.TradingPair, error) {
	pair := domain.TradingPair{Base: base, Quote: quote}
	err := s.db.
		Where("base = ? AND quote = ?", base, quote).
		Attrs(domain.TradingPair{CurrentRate: decimal.Zero}).
		FirstOrCreate(&pair).Error
	if err != nil {
		// A concurrent creator may have won the unique (base, quote) index
		existing, ferr := s.GetPair(base, quote)
		if ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return &pair, nil
}

// GetAllPairs retrieves all trading pairs sorted by base symbol
func (s *Storage) GetAllPairs() ([]domain.TradingPair, error) {
	var pairs []domain.TradingPair
	err := s.db.Order("base asc").Find(&pairs).Error
	return pairs, err
}

// ======================================================================================
// Price Observations
// ======================================================================================

// RecordObservation appends a price tick and updates the pair's current rate.
// Both writes happen in one transaction: a partial update is a correctness
// violation, so either both land or neither does.
func (s *Storage) RecordObservation(pairID uint, price decimal.Decimal, ts time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.TradingPair{}).
			Where("id = ?", pairID).
			Updates(map[string]interface{}{"current_rate": price, "updated_at": ts})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&domain.PriceObservation{
			PairID:    pairID,
			Price:     price,
			Timestamp: ts,
		}).Error
	})
}

// History retrieves up to limit observations for a pair, oldest first
func (s *Storage) History(pairID uint, limit int) ([]domain.PriceObservation, error) {
	var obs []domain.PriceObservation
	err := s.db.
		Where("pair_id = ?", pairID).
		Order("timestamp asc").
		Limit(limit).
		Find(&obs).Error
	return obs, err
}

// ======================================================================================
// Ledger Operations
// ======================================================================================

// GetOrCreateAccount retrieves a user's account, opening it with the
// starting cash balance exactly once. Idempotent and safe to call
// concurrently for the same user.
func (s *Storage) GetOrCreateAccount(userID string) (*domain.Account, error) {
	acct := domain.Account{UserID: userID}
	err := s.db.
		Where("user_id = ?", userID).
		Attrs(domain.Account{CashBalance: domain.StartingCashBalance}).
		FirstOrCreate(&acct).Error
	if err != nil {
		// Lost a concurrent create on the primary key
		var existing domain.Account
		if ferr := s.db.First(&existing, "user_id = ?", userID).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &acct, nil
}

// GetOrCreateHolding retrieves a (user, pair) holding, creating it with
// zero quantity exactly once. Same idempotence contract as accounts.
func (s *Storage) GetOrCreateHolding(userID string, pairID uint) (*domain.Holding, error) {
	holding := domain.Holding{UserID: userID, PairID: pairID}
	err := s.db.
		Where("user_id = ? AND pair_id = ?", userID, pairID).
		Attrs(domain.Holding{Quantity: decimal.Zero}).
		FirstOrCreate(&holding).Error
	if err != nil {
		var existing domain.Holding
		if ferr := s.db.First(&existing, "user_id = ? AND pair_id = ?", userID, pairID).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &holding, nil
}

// GetHoldings retrieves all holdings for a user
func (s *Storage) GetHoldings(userID string) ([]domain.Holding, error) {
	var holdings []domain.Holding
	err := s.db.Where("user_id = ?", userID).Find(&holdings).Error
	return holdings, err
}

// ======================================================================================
// Trade Operations
// ======================================================================================

// ApplyTrade persists the mutated account and holding together with the new
// trade record as one all-or-nothing transaction. Any error rolls back every
// write, so no half-applied trade ever reaches durable storage.
func (s *Storage) ApplyTrade(acct *domain.Account, holding *domain.Holding, trade *domain.Trade) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(acct).Error; err != nil {
			return err
		}
		if err := tx.Save(holding).Error; err != nil {
			return err
		}
		return tx.Create(trade).Error
	})
}

// GetTrades retrieves up to limit trades for a user, newest first
func (s *Storage) GetTrades(userID string, limit int) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := s.db.
		Where("user_id = ?", userID).
		Order("timestamp desc").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}
