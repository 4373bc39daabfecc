// Package endpoint registers capture endpoints in-process, standing in for
// the platform's device-node registry.
package endpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/smartcam/internal/device"
)

// NamePrefix is the prefix of automatically assigned endpoint names.
const NamePrefix = "video"

// DefaultMaxMinors bounds the number of concurrently registered endpoints.
const DefaultMaxMinors = 64

// Registration errors.
var (
	ErrNameInUse     = errors.New("endpoint name already registered")
	ErrNoFreeMinor   = errors.New("no free minor number")
	ErrNotRegistered = errors.New("endpoint not registered")
)

// Registry hands out endpoint names and minor numbers. Registration and
// teardown are serialized by one lock.
type Registry struct {
	mu        sync.Mutex
	maxMinors int
	byName    map[string]int
	byMinor   map[int]string
	logger    *slog.Logger
}

// NewRegistry creates a registry with maxMinors slots; maxMinors <= 0 uses
// DefaultMaxMinors.
func NewRegistry(maxMinors int, logger *slog.Logger) *Registry {
	if maxMinors <= 0 {
		maxMinors = DefaultMaxMinors
	}
	return &Registry{
		maxMinors: maxMinors,
		byName:    make(map[string]int),
		byMinor:   make(map[int]string),
		logger:    logger,
	}
}

var _ device.Registrar = (*Registry)(nil)

// RegisterEndpoint reserves an endpoint. An empty name or "auto" takes the
// lowest free minor and is named videoN. A name of the form videoN claims
// minor N. Any other name takes the lowest free minor.
func (r *Registry) RegisterEndpoint(name string) (device.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	minor := -1
	switch {
	case name == "" || name == "auto":
		name = ""
	case strings.HasPrefix(name, NamePrefix):
		if n, err := strconv.Atoi(strings.TrimPrefix(name, NamePrefix)); err == nil && n >= 0 {
			if n >= r.maxMinors {
				return device.Endpoint{}, fmt.Errorf("%s: minor %d exceeds limit %d: %w", name, n, r.maxMinors, ErrNoFreeMinor)
			}
			minor = n
		}
	}

	if name != "" {
		if _, taken := r.byName[name]; taken {
			return device.Endpoint{}, fmt.Errorf("%s: %w", name, ErrNameInUse)
		}
	}
	if minor >= 0 {
		if owner, taken := r.byMinor[minor]; taken {
			return device.Endpoint{}, fmt.Errorf("%s: minor %d held by %s: %w", name, minor, owner, ErrNameInUse)
		}
	} else {
		minor = r.lowestFree()
		if minor < 0 {
			return device.Endpoint{}, ErrNoFreeMinor
		}
	}
	if name == "" {
		name = NamePrefix + strconv.Itoa(minor)
		if _, taken := r.byName[name]; taken {
			return device.Endpoint{}, fmt.Errorf("%s: %w", name, ErrNameInUse)
		}
	}

	r.byName[name] = minor
	r.byMinor[minor] = name
	r.logger.Info("Endpoint registered", "name", name, "minor", minor)
	return device.Endpoint{Name: name, Minor: minor}, nil
}

// UnregisterEndpoint releases ep. Unknown endpoints are ignored.
func (r *Registry) UnregisterEndpoint(ep device.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	minor, ok := r.byName[ep.Name]
	if !ok || minor != ep.Minor {
		r.logger.Warn("Unregister of unknown endpoint", "name", ep.Name, "minor", ep.Minor)
		return
	}
	delete(r.byName, ep.Name)
	delete(r.byMinor, minor)
	r.logger.Info("Endpoint unregistered", "name", ep.Name, "minor", minor)
}

// Lookup returns the endpoint registered under name.
func (r *Registry) Lookup(name string) (device.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	minor, ok := r.byName[name]
	if !ok {
		return device.Endpoint{}, fmt.Errorf("%s: %w", name, ErrNotRegistered)
	}
	return device.Endpoint{Name: name, Minor: minor}, nil
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

func (r *Registry) lowestFree() int {
	for i := range r.maxMinors {
		if _, taken := r.byMinor[i]; !taken {
			return i
		}
	}
	return -1
}
