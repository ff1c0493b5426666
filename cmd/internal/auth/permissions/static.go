package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultRoles is used when no catalog file is configured.
var DefaultRoles = map[string][]string{
	"admin": {"accounts.read", "accounts.write", "sessions.revoke", "audit.read"},
	"user":  {"profile.read", "profile.write"},
}

// StaticCatalog maps roles to permissions. It can be loaded from a YAML file
// and reloaded in place; readers always see a complete snapshot.
//
//	roles:
//	  admin: [accounts.read, accounts.write]
//	  user: [profile.read]
type StaticCatalog struct {
	path string

	mu    sync.RWMutex
	roles map[string][]string
}

type catalogFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// NewStaticCatalog returns a catalog over roles. Role names are case-insensitive.
func NewStaticCatalog(roles map[string][]string) *StaticCatalog {
	return &StaticCatalog{roles: normalizeRoles(roles)}
}

// LoadStaticCatalog reads path and returns a catalog that Reload and Watch refresh.
func LoadStaticCatalog(path string) (*StaticCatalog, error) {
	c := &StaticCatalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func normalizeRoles(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for role, perms := range in {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		out[role] = normalize(append(out[role], perms...))
	}
	return out
}

func parseCatalog(data []byte) (map[string][]string, error) {
	var f catalogFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("permissions: parse: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, errors.New("permissions: catalog defines no roles")
	}
	return normalizeRoles(f.Roles), nil
}

// Reload re-reads the catalog file. On error the previous snapshot is kept.
func (c *StaticCatalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("permissions: read %s: %w", c.path, err)
	}
	roles, err := parseCatalog(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.roles = roles
	c.mu.Unlock()
	return nil
}

// EffectivePermissions returns the role's permissions. Unknown roles get an empty set.
func (c *StaticCatalog) EffectivePermissions(ctx context.Context, _ string, role string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	perms := c.roles[strings.ToLower(strings.TrimSpace(role))]
	c.mu.RUnlock()
	return append(make([]string, 0, len(perms)), perms...), nil
}

// Roles returns the configured role names.
func (c *StaticCatalog) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.roles))
	for r := range c.roles {
		out = append(out, r)
	}
	return normalize(out)
}

// Watch reloads the catalog whenever its file changes, until ctx is done.
// The parent directory is watched so editor rename-and-replace saves are seen.
// Bursts of events are coalesced over debounce.
func (c *StaticCatalog) Watch(ctx context.Context, debounce time.Duration, log *slog.Logger) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("permissions: watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(c.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("permissions: watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("permissions.watch.error", "err", err)

		case <-timer.C:
			if err := c.Reload(); err != nil {
				log.Error("permissions.reload.failed", "path", c.path, "err", err)
				continue
			}
			log.Info("permissions.reload.ok", "path", c.path, "roles", len(c.Roles()))
		}
	}
}
