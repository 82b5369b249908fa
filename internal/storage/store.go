package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// PriceCacheEntry is a cached menu photo price lookup. A nil Price records
// that the dish was not found on the menu.
type PriceCacheEntry struct {
	Price     *string
	CreatedAt time.Time
}

// AllowedUser represents a user in the whitelist.
type AllowedUser struct {
	TelegramID int64
	AddedAt    time.Time
	AddedBy    int64
}

// Store defines the persistence the bot needs.
type Store interface {
	// Price cache methods
	GetPriceCache(key string) (*PriceCacheEntry, error)
	SetPriceCache(key string, entry *PriceCacheEntry) error
	PrunePriceCache(olderThan time.Time) (int64, error)

	// Last typed location per user
	SetLastLocation(telegramID int64, location string) error
	GetLastLocation(telegramID int64) (string, error)

	// Allowed users methods
	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
	GetAllowedUsers() ([]AllowedUser, error)

	Ping(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions once the file exists
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", dbPath).Msg("failed to restrict database permissions")
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	tables := []struct {
		name  string
		query string
	}{
		{"price_cache", `
		CREATE TABLE IF NOT EXISTS price_cache (
			cache_key TEXT PRIMARY KEY,
			price TEXT,
			created_at INTEGER NOT NULL
		);`},
		{"user_settings", `
		CREATE TABLE IF NOT EXISTS user_settings (
			telegram_id INTEGER PRIMARY KEY,
			last_location TEXT
		);`},
		{"allowed_users", `
		CREATE TABLE IF NOT EXISTS allowed_users (
			telegram_id INTEGER PRIMARY KEY,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			added_by INTEGER
		);`},
	}

	for _, t := range tables {
		if _, err := s.db.Exec(t.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetPriceCache retrieves a cached price lookup.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetPriceCache(key string) (*PriceCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var price sql.NullString
	var createdAt int64
	err := s.db.QueryRow(
		"SELECT price, created_at FROM price_cache WHERE cache_key = ?",
		key,
	).Scan(&price, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query price cache: %w", err)
	}

	entry := &PriceCacheEntry{CreatedAt: time.Unix(createdAt, 0)}
	if price.Valid {
		p := price.String
		entry.Price = &p
	}
	return entry, nil
}

// SetPriceCache stores a price lookup, replacing any previous one.
func (s *SQLiteStore) SetPriceCache(key string, entry *PriceCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var price sql.NullString
	if entry.Price != nil {
		price = sql.NullString{String: *entry.Price, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO price_cache (cache_key, price, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			price = excluded.price,
			created_at = excluded.created_at
	`, key, price, entry.CreatedAt.Unix())

	if err != nil {
		return fmt.Errorf("failed to cache price: %w", err)
	}
	return nil
}

// PrunePriceCache deletes entries created before olderThan.
func (s *SQLiteStore) PrunePriceCache(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM price_cache WHERE created_at < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price cache: %w", err)
	}
	return res.RowsAffected()
}

// SetLastLocation remembers the last location a user typed.
func (s *SQLiteStore) SetLastLocation(telegramID int64, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
	INSERT INTO user_settings (telegram_id, last_location)
	VALUES (?, ?)
	ON CONFLICT(telegram_id) DO UPDATE SET
		last_location = excluded.last_location;
	`, telegramID, location)
	if err != nil {
		return fmt.Errorf("failed to set last location: %w", err)
	}
	return nil
}

// GetLastLocation returns the last location a user typed.
// Returns empty string if not set.
func (s *SQLiteStore) GetLastLocation(telegramID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var location sql.NullString
	err := s.db.QueryRow(
		"SELECT last_location FROM user_settings WHERE telegram_id = ?",
		telegramID,
	).Scan(&location)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last location: %w", err)
	}

	return location.String, nil
}

// IsUserAllowed checks if a user is in the whitelist.
func (s *SQLiteStore) IsUserAllowed(telegramID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM allowed_users WHERE telegram_id = ?",
		telegramID,
	).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check allowed user: %w", err)
	}

	return count > 0, nil
}

// AddAllowedUser adds a user to the whitelist.
func (s *SQLiteStore) AddAllowedUser(telegramID, addedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO allowed_users (telegram_id, added_by)
		VALUES (?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			added_by = excluded.added_by,
			added_at = CURRENT_TIMESTAMP
	`, telegramID, addedBy)

	if err != nil {
		return fmt.Errorf("failed to add allowed user: %w", err)
	}
	return nil
}

// RemoveAllowedUser removes a user from the whitelist.
func (s *SQLiteStore) RemoveAllowedUser(telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM allowed_users WHERE telegram_id = ?", telegramID)
	if err != nil {
		return fmt.Errorf("failed to remove allowed user: %w", err)
	}
	return nil
}

// GetAllowedUsers returns all users in the whitelist.
func (s *SQLiteStore) GetAllowedUsers() ([]AllowedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT telegram_id, added_at, added_by FROM allowed_users ORDER BY added_at, telegram_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed users: %w", err)
	}
	defer rows.Close()

	var users []AllowedUser
	for rows.Next() {
		var user AllowedUser
		var addedBy sql.NullInt64
		if err := rows.Scan(&user.TelegramID, &user.AddedAt, &addedBy); err != nil {
			return nil, fmt.Errorf("failed to scan allowed user: %w", err)
		}
		user.AddedBy = addedBy.Int64
		users = append(users, user)
	}

	return users, rows.Err()
}
