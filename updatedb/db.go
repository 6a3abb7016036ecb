package updatedb

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const dbFileName = "roster.db"

var settingsBucket = []byte("settings")
var updateConfigKey = []byte("updateConfig")

// DB is the durable store for the update configuration. One record is kept
// per installation; it is loaded once on open and rewritten after every
// mutation. bbolt takes an exclusive file lock, so a second process pointed
// at the same data directory fails at open instead of racing on writes.
type DB struct {
	*bbolt.DB
	mu     sync.Mutex
	config *UpdateConfig
	log    Logger
}

// Open opens or creates the database inside dataDir and loads the update
// configuration. A missing or unreadable record falls back to defaults
// rather than failing the process.
func Open(dataDir string, logger Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, errors.Errorf("Could not create data directory: %v", err)
	}

	boltDB, err := bbolt.Open(filepath.Join(dataDir, dbFileName), 0600, &bbolt.Options{
		Timeout: 2 * time.Second,
	})
	if err != nil {
		return nil, errors.Errorf("Could not open database: %v", err)
	}

	db := &DB{
		DB:  boltDB,
		log: logger,
	}

	if db.log == nil {
		db.log = noopLogger{}
	}

	db.config = db.loadUpdateConfig()

	return db, nil
}

// loadUpdateConfig reads the persisted record and merges it field-by-field
// over the defaults, so fields introduced after the record was written get
// sane values without discarding prior state. It never fails.
func (db *DB) loadUpdateConfig() *UpdateConfig {
	config := defaultUpdateConfig()

	err := db.getJSON(settingsBucket, updateConfigKey, config)
	if err != nil {
		db.log.Warnf("Could not load update config, falling back to defaults: %v", err)
		return defaultUpdateConfig()
	}

	return config
}

// persist writes the in-memory record through to disk. Write failures are
// logged and absorbed; the in-memory state stays authoritative for the
// running process. Callers must hold db.mu.
func (db *DB) persist() {
	err := db.setJSON(settingsBucket, updateConfigKey, db.config)
	if err != nil {
		db.log.Errorf("Could not persist update config: %v", err)
	}
}
