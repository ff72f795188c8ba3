package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/RuliLG/docc/internal/config"
	"github.com/RuliLG/docc/internal/script"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session folder does not exist.
var ErrNotFound = errors.New("session not found")

// Session is one persisted presentation in the index.
type Session struct {
	Folder         string
	RepositoryPath string
	Question       string
	Blocks         int
	CreatedAt      time.Time
}

// Store persists generated presentations. The script and its narration
// audio live on disk under sessions/<folder>/; a SQLite index carries the
// listing metadata so the UI never has to scan and parse every folder.
type Store struct {
	db    *sql.DB
	cfg   config.SessionsConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the session store according to config.
func Open(ctx context.Context, cfg config.SessionsConfig, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	dir := filepath.Dir(cfg.IndexPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.IndexPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log.With(slog.String("component", "session-store")), clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		s.log.Warn("session prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    folder TEXT PRIMARY KEY,
    repository_path TEXT NOT NULL,
    question TEXT NOT NULL,
    blocks INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewFolderID derives a session folder name from the repository base name
// and the current timestamp, e.g. "docc_20250115_143012".
func (s *Store) NewFolderID(repositoryPath string) string {
	return fmt.Sprintf("%s_%s", filepath.Base(repositoryPath), s.clock().Format("20060102_150405"))
}

// FolderPath returns the on-disk directory for a session folder.
func (s *Store) FolderPath(folder string) string {
	return filepath.Join(s.cfg.Dir, folder)
}

// AudioDir returns the narration audio directory for a session folder.
func (s *Store) AudioDir(folder string) string {
	return filepath.Join(s.cfg.Dir, folder, "audio")
}

// Save writes the script document to sessions/<folder>/script.json and
// records the session in the index. The audio directory is created so
// narration files can be dropped in next to the script.
func (s *Store) Save(ctx context.Context, folder string, doc *script.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.AudioDir(folder), 0o755); err != nil {
		return fmt.Errorf("create session folder: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.FolderPath(folder), "script.json"), data, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(folder, repository_path, question, blocks, created_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(folder) DO UPDATE SET repository_path=excluded.repository_path,
		     question=excluded.question, blocks=excluded.blocks`,
		folder, doc.RepositoryPath, doc.Question, doc.Len(), s.clock().UTC())
	if err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

// Load reads the script document for a session folder.
func (s *Store) Load(ctx context.Context, folder string) (*script.Document, error) {
	data, err := os.ReadFile(filepath.Join(s.FolderPath(folder), "script.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, folder)
		}
		return nil, fmt.Errorf("read script: %w", err)
	}
	return script.Parse(data)
}

// List returns indexed sessions, newest first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT folder, repository_path, question, blocks, created_at
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Folder, &sess.RepositoryPath, &sess.Question, &sess.Blocks, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Delete removes a session from the index and from disk.
func (s *Store) Delete(ctx context.Context, folder string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE folder = ?`, folder); err != nil {
		return fmt.Errorf("deindex session: %w", err)
	}
	if err := os.RemoveAll(s.FolderPath(folder)); err != nil {
		return fmt.Errorf("remove session folder: %w", err)
	}
	return nil
}

// Prune enforces the retention policy: sessions older than the retention
// window go first, then the oldest beyond the session cap.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
		expired, err := s.selectFolders(ctx,
			`SELECT folder FROM sessions WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		for _, folder := range expired {
			if err := s.Delete(ctx, folder); err != nil {
				return err
			}
			s.log.Info("pruned expired session", slog.String("folder", folder))
		}
	}

	if s.cfg.MaxSessions > 0 {
		excess, err := s.selectFolders(ctx,
			`SELECT folder FROM sessions ORDER BY created_at DESC LIMIT -1 OFFSET ?`, s.cfg.MaxSessions)
		if err != nil {
			return err
		}
		for _, folder := range excess {
			if err := s.Delete(ctx, folder); err != nil {
				return err
			}
			s.log.Info("pruned excess session", slog.String("folder", folder))
		}
	}
	return nil
}

func (s *Store) selectFolders(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []string
	for rows.Next() {
		var folder string
		if err := rows.Scan(&folder); err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}
