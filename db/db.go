package db

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/util"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the local store: SSH key links and viewer preferences. Accounts,
// events and follows live behind the API.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const dbFile = "fedcal.db"

const (
	sqlInsertKeyLink = `INSERT INTO key_links(id, key_hash, token, username, created_at) VALUES (?, ?, ?, ?, ?)
                        ON CONFLICT(key_hash) DO UPDATE SET token = excluded.token, username = excluded.username, created_at = excluded.created_at`
	sqlSelectKeyLinkByHash = `SELECT id, key_hash, token, username, created_at FROM key_links WHERE key_hash = ?`
	sqlDeleteKeyLink       = `DELETE FROM key_links WHERE key_hash = ?`

	sqlSelectPreferences = `SELECT key_hash, hide_zero_events FROM preferences WHERE key_hash = ?`
	sqlUpsertPreferences = `INSERT INTO preferences(key_hash, hide_zero_events, updated_at) VALUES (?, ?, ?)
                            ON CONFLICT(key_hash) DO UPDATE SET hide_zero_events = excluded.hide_zero_events, updated_at = excluded.updated_at`
)

// Open opens the sqlite database at path and migrates it.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if path == ":memory:" {
		// every connection would get its own empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		var journalMode string
		if err := sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}
		sqlDB.Exec("PRAGMA synchronous = NORMAL")
		sqlDB.Exec("PRAGMA busy_timeout = 5000")
	}

	d := &DB{db: sqlDB}
	if err := d.RunMigrations(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// GetDB returns the process wide database in the config directory.
func GetDB() *DB {
	dbOnce.Do(func() {
		d, err := Open(util.ResolveFilePath(dbFile))
		if err != nil {
			panic(err)
		}
		dbInstance = d
	})
	return dbInstance
}

func (db *DB) Close() error {
	return db.db.Close()
}

// CreateKeyLink links keyHash to token, replacing an earlier link.
func (db *DB) CreateKeyLink(keyHash, token, username string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertKeyLink, uuid.New().String(), keyHash, token, username, time.Now())
		return err
	})
}

// ReadKeyLinkByHash returns nil without error when no link exists.
func (db *DB) ReadKeyLinkByHash(keyHash string) (*domain.KeyLink, error) {
	var link domain.KeyLink
	var idStr string
	err := db.db.QueryRow(sqlSelectKeyLinkByHash, keyHash).Scan(&idStr, &link.KeyHash, &link.Token, &link.Username, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	link.Id, _ = uuid.Parse(idStr)
	return &link, nil
}

func (db *DB) DeleteKeyLink(keyHash string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteKeyLink, keyHash)
		return err
	})
}

// ReadPreferences falls back to the defaults for unknown viewers.
func (db *DB) ReadPreferences(keyHash string) (domain.Preferences, error) {
	prefs := domain.DefaultPreferences(keyHash)
	var hide int
	err := db.db.QueryRow(sqlSelectPreferences, keyHash).Scan(&prefs.KeyHash, &hide)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return prefs, err
	}
	prefs.HideZeroEvents = hide == 1
	return prefs, nil
}

func (db *DB) UpdatePreferences(prefs domain.Preferences) error {
	hide := 0
	if prefs.HideZeroEvents {
		hide = 1
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertPreferences, prefs.KeyHash, hide, time.Now())
		return err
	})
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY && ctx.Err() == nil {
				continue
			}
			tx.Rollback()
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}
