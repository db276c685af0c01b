package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"osmgrab/pkg/archive"
)

var keyCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeKey derives a storage key from a human-readable label:
// "Geofabrik index of subregions" -> "geofabrik_index_of_subregions".
func NormalizeKey(label string) string {
	k := keyCleanRe.ReplaceAllString(strings.ToLower(label), "_")
	return strings.Trim(k, "_")
}

// Getter is the read-side of a Store, split out so the manager can be
// tested without sqlite.
type Getter interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, payload []byte) error
}

// Manager materializes values through a Store, gating every (re)build
// behind an injected confirmation capability. A builder failure is
// reported and leaves the key absent, never half-written, so the next
// call retries cleanly and a caller looping over many independent keys
// can continue past a single failure.
type Manager struct {
	Store   Getter
	Confirm archive.ConfirmFunc
	Log     logrus.FieldLogger
}

// NewManager wires a manager around an opened store. A nil confirm
// defaults to always-yes.
func NewManager(store Getter, confirm archive.ConfirmFunc, log logrus.FieldLogger) *Manager {
	if confirm == nil {
		confirm = archive.ConfirmAll
	}
	return &Manager{Store: store, Confirm: confirm, Log: log}
}

// GetOrBuild returns the cached payload for label, running build only
// on a miss or when refresh is set. The boolean result is false when
// no data is available: the user declined, the builder failed, or the
// store is unreadable. Construction can take minutes, so the hit path
// never invokes build.
func (m *Manager) GetOrBuild(label string, refresh bool, build func() ([]byte, error)) ([]byte, bool) {
	key := NormalizeKey(label)

	exists := false
	if payload, ok, err := m.Store.Get(key); err != nil {
		m.Log.WithError(err).Warnf("reading cached %s", label)
	} else if ok {
		if !refresh {
			return payload, true
		}
		exists = true
	}

	action := "compile"
	if exists || refresh {
		action = "update the"
	}
	if !m.Confirm(fmt.Sprintf("To %s data of %s\n?", action, label)) {
		m.Log.Infof("The collecting of %s is cancelled, or no data is available.", label)
		return nil, false
	}

	payload, err := build()
	if err != nil {
		m.Log.WithError(err).Errorf("failed to compile data of %s", label)
		return nil, false
	}
	if err := m.Store.Put(key, payload); err != nil {
		m.Log.WithError(err).Warnf("failed to cache data of %s", label)
	}
	return payload, true
}

// DefaultDir returns the directory holding per-archive cache
// databases, ~/.config/osmgrab/cache.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "osmgrab", "cache"), nil
}
