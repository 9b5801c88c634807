package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// TokenKey is the fixed key the token is stored under.
const TokenKey = "access_token"

// FileSlot stores the token in a yaml file readable only by the owner.
type FileSlot struct {
	mu   sync.Mutex
	path string
}

// NewFileSlot returns a slot persisted at path.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// DurablePath is the slot file that survives restarts.
func DurablePath(configDir string) string {
	return filepath.Join(configDir, "session.yaml")
}

// TabPath is the slot file scoped to the calling shell, identified by the
// parent process id. It lives in the temp dir and goes away with it.
func TabPath() string {
	return filepath.Join(os.TempDir(), "stockdesk-session-"+strconv.Itoa(os.Getppid())+".yaml")
}

func (f *FileSlot) Path() string { return f.path }

func (f *FileSlot) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session file: %w", err)
	}
	var doc map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing session file %s: %w", f.path, err)
	}
	return doc[TokenKey], nil
}

func (f *FileSlot) Save(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(map[string]string{TokenKey: token})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

func (f *FileSlot) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
