package gen

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funvibe/emitter/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS generated (
	interface   TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	output      TEXT NOT NULL,
	content_sha TEXT NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// Cache remembers what was generated for each interface in
// .emittergen/cache.db, so unchanged interfaces are not rewritten.
// An entry is fresh when the fingerprint matches and the output file still
// holds exactly what was written.
type Cache struct {
	db   *sql.DB
	path string
}

// OpenCache opens (creating if needed) the cache under projectDir.
func OpenCache(projectDir string) (*Cache, error) {
	dir := filepath.Join(projectDir, config.CacheDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(dir, config.CacheFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache %s: %w", path, err)
	}
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file.
func (c *Cache) Path() string { return c.path }

// Close closes the database.
func (c *Cache) Close() error { return c.db.Close() }

// Fresh reports whether t's dispatcher is up to date.
func (c *Cache) Fresh(t *Target, fingerprint string) bool {
	var stored, output, sum string
	err := c.db.QueryRow(
		`SELECT fingerprint, output, content_sha FROM generated WHERE interface = ?`,
		t.Desc.ID().String(),
	).Scan(&stored, &output, &sum)
	if err != nil {
		return false
	}
	if stored != fingerprint || output != t.Filename() {
		return false
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return false
	}
	return contentHash(data) == sum
}

// Store records that content was written for t.
func (c *Cache) Store(t *Target, fingerprint string, content []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO generated (interface, fingerprint, output, content_sha, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(interface) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			output = excluded.output,
			content_sha = excluded.content_sha,
			updated_at = excluded.updated_at`,
		t.Desc.ID().String(), fingerprint, t.Filename(), contentHash(content), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("updating cache for %s: %w", t.Desc.ID(), err)
	}
	return nil
}

// Prune drops the entries whose output file no longer exists, which is
// what is left behind when an interface and its dispatcher are deleted.
// It returns the number of entries dropped.
func (c *Cache) Prune() (int, error) {
	rows, err := c.db.Query(`SELECT interface, output FROM generated`)
	if err != nil {
		return 0, fmt.Errorf("reading cache: %w", err)
	}
	var gone []string
	for rows.Next() {
		var iface, output string
		if err := rows.Scan(&iface, &output); err != nil {
			rows.Close()
			return 0, fmt.Errorf("reading cache: %w", err)
		}
		if _, err := os.Stat(output); errors.Is(err, fs.ErrNotExist) {
			gone = append(gone, iface)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("reading cache: %w", err)
	}
	// The cache holds a single connection; release it before deleting.
	rows.Close()

	for _, iface := range gone {
		if err := c.Forget(iface); err != nil {
			return 0, err
		}
	}
	return len(gone), nil
}

// Forget drops the entry for an interface, if any.
func (c *Cache) Forget(iface string) error {
	_, err := c.db.Exec(`DELETE FROM generated WHERE interface = ?`, iface)
	if err != nil {
		return fmt.Errorf("updating cache for %s: %w", iface, err)
	}
	return nil
}

// Len returns the number of cached interfaces.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM generated`).Scan(&n); err != nil {
		return 0, fmt.Errorf("reading cache: %w", err)
	}
	return n, nil
}

// Fingerprint hashes everything that shapes t's generated file, so a
// change in any of it forces regeneration.
func Fingerprint(t *Target) string {
	h := sha256.New()
	line := func(parts ...string) {
		h.Write([]byte(strings.Join(parts, "\x00")))
		h.Write([]byte{'\n'})
	}

	id := t.Desc.ID()
	line("version", config.CodegenVersion)
	line("interface", id.PkgPath, id.Name)
	line("package", t.PkgName, t.Runtime, fmt.Sprint(t.Declare))

	paths := make([]string, 0, len(t.Imports))
	for path := range t.Imports {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		line("import", path, t.Imports[path])
	}

	for _, m := range t.Desc.Flatten() {
		parts := []string{"method", m.Name, fmt.Sprint(m.Variadic)}
		for _, p := range m.Params {
			parts = append(parts, p.Name, p.Type.Expr)
		}
		line(parts...)
	}
	if t.Declare {
		for _, m := range t.Desc.Methods() {
			line("declared", m.Name)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
