package logger

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

var (
	mu     sync.Mutex
	global *zap.Logger
)

// Init builds the process-wide logger and installs it for L. Output goes to
// the console, and additionally to a SQLite logs table when dbPath is
// non-empty. Calling Init again replaces the previous logger.
func Init(dbPath string) (*zap.Logger, error) {
	cores := []zapcore.Core{consoleCore()}

	if dbPath != "" {
		sink, err := newSQLiteSink(dbPath)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(sink),
			zap.InfoLevel,
		))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))

	mu.Lock()
	global = l
	mu.Unlock()
	return l, nil
}

// L returns the process-wide logger, falling back to a console-only logger
// when Init was never called.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = zap.New(consoleCore(), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	}
	return global
}

func consoleCore() zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.DebugLevel,
	)
}

// sqliteSink implements zapcore.WriteSyncer backed by a SQLite logs table.
type sqliteSink struct {
	db *sql.DB
}

func newSQLiteSink(path string) (*sqliteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open logging database: %w", err)
	}
	const schema = `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		entry TEXT
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create logs table: %w", err)
	}
	return &sqliteSink{db: db}, nil
}

// Write inserts the encoded log entry as one row.
func (s *sqliteSink) Write(p []byte) (int, error) {
	if _, err := s.db.Exec(`INSERT INTO logs(entry) VALUES(?)`, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Sync is a no-op; every Write is already committed.
func (s *sqliteSink) Sync() error {
	return nil
}
