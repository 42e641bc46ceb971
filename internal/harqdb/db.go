// Package harqdb persists HARQ soft buffers to SQLite so an evaluation run
// can be checkpointed and resumed.
package harqdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"

	"github.com/observe-l/nrcoding/ldpc"
)

// SoftBuffer is one stored soft buffer. LLRs are little-endian int16.
type SoftBuffer struct {
	ID        uint   `gorm:"primaryKey"`
	RNTI      uint16 `gorm:"column:rnti;uniqueIndex:idx_softbuf_key"`
	HarqPID   uint8  `gorm:"column:harq_pid;uniqueIndex:idx_softbuf_key"`
	Segment   int    `gorm:"column:segment;uniqueIndex:idx_softbuf_key"`
	Length    int    `gorm:"column:length"`
	LLR       []byte `gorm:"column:llr"`
	UpdatedAt time.Time
}

// DB wraps the GORM connection.
type DB struct {
	db *gorm.DB
}

// Open opens or creates the database at path.
func Open(path string, logger *log.Logger) (*DB, error) {
	if path == "" {
		path = "harq.db"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	gormLog := gormlogger.New(logger, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: path}, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := db.AutoMigrate(&SoftBuffer{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func encodeLLR(buf []int16) []byte {
	b := make([]byte, 2*len(buf))
	for i, v := range buf {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func decodeLLR(b []byte) []int16 {
	buf := make([]int16, len(b)/2)
	for i := range buf {
		buf[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return buf
}

func record(key ldpc.SoftBufferKey, buf []int16) SoftBuffer {
	return SoftBuffer{
		RNTI:    key.RNTI,
		HarqPID: key.HarqPID,
		Segment: key.Segment,
		Length:  len(buf),
		LLR:     encodeLLR(buf),
	}
}

var upsert = clause.OnConflict{
	Columns:   []clause.Column{{Name: "rnti"}, {Name: "harq_pid"}, {Name: "segment"}},
	DoUpdates: clause.AssignmentColumns([]string{"length", "llr", "updated_at"}),
}

// Save stores or replaces the buffer for key.
func (d *DB) Save(key ldpc.SoftBufferKey, buf []int16) error {
	rec := record(key, buf)
	return d.db.Clauses(upsert).Create(&rec).Error
}

// Load returns the stored buffer for key. ok is false when none exists.
func (d *DB) Load(key ldpc.SoftBufferKey) (buf []int16, ok bool, err error) {
	var rec SoftBuffer
	err = d.db.Where("rnti = ? AND harq_pid = ? AND segment = ?", key.RNTI, key.HarqPID, key.Segment).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeLLR(rec.LLR), true, nil
}

// SaveStore replaces the stored buffers with the contents of store in one
// transaction.
func (d *DB) SaveStore(store *ldpc.MemoryStore) (int, error) {
	var recs []SoftBuffer
	store.Range(func(key ldpc.SoftBufferKey, buf []int16) bool {
		recs = append(recs, record(key, buf))
		return true
	})
	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SoftBuffer{}).Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.Clauses(upsert).CreateInBatches(recs, 64).Error
	})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Restore loads every stored buffer into store.
func (d *DB) Restore(store *ldpc.MemoryStore) (int, error) {
	var recs []SoftBuffer
	if err := d.db.Order("rnti, harq_pid, segment").Find(&recs).Error; err != nil {
		return 0, err
	}
	for _, rec := range recs {
		key := ldpc.SoftBufferKey{RNTI: rec.RNTI, HarqPID: rec.HarqPID, Segment: rec.Segment}
		store.Put(key, decodeLLR(rec.LLR))
	}
	return len(recs), nil
}
