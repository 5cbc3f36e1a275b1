package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileRepository stores all records as one JSON document, {"users":[...]},
// rewritten in full on every mutation.
type FileRepository struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type fileDocument struct {
	Users []Record `json:"users"`
}

// NewFileRepository ensures the parent directory and file exist.
func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		return nil, errors.New("user store path empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	// Touch file if not exists
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path, now: time.Now}, nil
}

// LoadAll returns every record in file order.
func (r *FileRepository) LoadAll(ctx context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

// Get returns the record for username or ErrNotFound.
func (r *FileRepository) Get(ctx context.Context, username string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.loadUnlocked()
	if err != nil {
		return Record{}, err
	}
	key := Key(username)
	for _, u := range users {
		if Key(u.Username) == key {
			return u, nil
		}
	}
	return Record{}, ErrNotFound
}

// Upsert replaces or appends rec and rewrites the file.
func (r *FileRepository) Upsert(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	rec = normalize(rec, r.now())
	updated := false
	for i, u := range users {
		if Key(u.Username) == rec.Username {
			users[i] = rec
			updated = true
			break
		}
	}
	if !updated {
		users = append(users, rec)
	}
	return r.saveUnlocked(users)
}

// Ping checks the backing file is readable.
func (r *FileRepository) Ping(ctx context.Context) error {
	_, err := os.Stat(r.path)
	return err
}

func (r *FileRepository) loadUnlocked() ([]Record, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read user store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Record{}, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode user store %s: %w", r.path, err)
	}
	if doc.Users == nil {
		doc.Users = []Record{}
	}
	return doc.Users, nil
}

func (r *FileRepository) saveUnlocked(users []Record) error {
	data, err := json.MarshalIndent(fileDocument{Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace user store: %w", err)
	}
	return nil
}
