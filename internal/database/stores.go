// Package database opens the hosted record store and the device-local store and keeps their schemas current.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/distress"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/submission"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/callbacks"
	gormlogger "gorm.io/gorm/logger"
)

const libsqlDriverName = "libsql"

var errMissingPath = errors.New("database path is required")

// RecordStoreConfig selects the record store. A non-empty URL opens a hosted libSQL database;
// otherwise Path is opened as a local SQLite file.
type RecordStoreConfig struct {
	URL       string
	AuthToken string
	Path      string
}

// Hosted reports whether the config points at a libSQL server.
func (c RecordStoreConfig) Hosted() bool {
	return strings.TrimSpace(c.URL) != ""
}

func recordModels() []interface{} {
	models := []interface{}{
		&journal.Entry{},
		&distress.Record{},
		&distress.RecommendationEvent{},
		&users.Identity{},
		&migrationRecord{},
	}
	return append(models, engagement.Models()...)
}

func localModels() []interface{} {
	return []interface{}{
		&offline.PendingEntry{},
		&submission.QuotaUsage{},
		&users.DeviceIdentity{},
	}
}

// RecordStore is the handle to the record store. Opening it never touches the network, so the
// agent starts offline when the store is unreachable. The schema is migrated by the first
// successful Ready check.
type RecordStore struct {
	db     *gorm.DB
	target string
	hosted bool
	logger *zap.Logger

	mu       sync.Mutex
	migrated bool
}

// OpenRecordStore prepares a libSQL connection when a URL is configured and a local SQLite file otherwise.
func OpenRecordStore(cfg RecordStoreConfig, logger *zap.Logger) (*RecordStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db     *gorm.DB
		err    error
		target string
	)
	if cfg.Hosted() {
		target = redactURL(cfg.URL)
		db, err = openLibSQL(cfg.URL, cfg.AuthToken)
	} else {
		target = cfg.Path
		db, err = openSQLiteFile(cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open record store %s: %w", target, err)
	}

	logger.Info("record store configured", zap.String("target", target), zap.Bool("hosted", cfg.Hosted()))
	return &RecordStore{db: db, target: target, hosted: cfg.Hosted(), logger: logger}, nil
}

// DB returns the gorm handle the record-store services are built on.
func (s *RecordStore) DB() *gorm.DB {
	return s.db
}

// Ready reports whether the record store is reachable and usable: it pings, then migrates the schema
// once. A store whose migration fails is reported unreachable so nothing writes to a stale schema.
func (s *RecordStore) Ready(ctx context.Context) error {
	if err := Ping(ctx, s.db); err != nil {
		return err
	}
	return s.EnsureSchema(ctx)
}

// EnsureSchema runs AutoMigrate and the pending data migrations the first time it succeeds.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migrated {
		return nil
	}
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(recordModels()...); err != nil {
		return fmt.Errorf("migrate record store: %w", err)
	}
	if err := applyMigrations(db, s.logger); err != nil {
		return err
	}
	s.migrated = true
	s.logger.Info("record store initialized", zap.String("target", s.target), zap.Bool("hosted", s.hosted))
	return nil
}

// Close releases the underlying connection pool.
func (s *RecordStore) Close() error {
	if s == nil {
		return nil
	}
	return Close(s.db)
}

// OpenLocalStore opens the device-local SQLite file that holds the offline queue, the quota counter
// and the anonymous device identity.
func OpenLocalStore(path string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := openSQLiteFile(path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.AutoMigrate(localModels()...); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	logger.Info("local store initialized", zap.String("path", path))
	return db, nil
}

// Ping runs a trivial query so connectivity probes exercise the full round trip.
func Ping(ctx context.Context, db *gorm.DB) error {
	var one int
	return db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openSQLiteFile(path string) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errMissingPath
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openLibSQL(rawURL, authToken string) (*gorm.DB, error) {
	connStr := rawURL
	if token := strings.TrimSpace(authToken); token != "" {
		separator := "?"
		if strings.Contains(connStr, "?") {
			separator = "&"
		}
		connStr = connStr + separator + "authToken=" + url.QueryEscape(token)
	}
	conn, err := sql.Open(libsqlDriverName, connStr)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(libsqlDialector{Dialector: sqlite.Dialector{Conn: conn}}, &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// libsqlDialector is the SQLite dialector without its start-up version query, which would need the
// network. libSQL servers are past SQLite 3.35, so RETURNING clauses are always available.
type libsqlDialector struct {
	sqlite.Dialector
}

func (d libsqlDialector) Initialize(db *gorm.DB) error {
	db.ConnPool = d.Conn
	callbacks.RegisterDefaultCallbacks(db, &callbacks.Config{
		CreateClauses:        []string{"INSERT", "VALUES", "ON CONFLICT", "RETURNING"},
		UpdateClauses:        []string{"UPDATE", "SET", "FROM", "WHERE", "RETURNING"},
		DeleteClauses:        []string{"DELETE", "FROM", "WHERE", "RETURNING"},
		LastInsertIDReversed: true,
	})
	for name, builder := range d.ClauseBuilders() {
		db.ClauseBuilders[name] = builder
	}
	return nil
}

// redactURL drops credentials and query parameters before a URL reaches the logs.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	parsed.User = nil
	parsed.RawQuery = ""
	return parsed.String()
}
