package vfs

import (
	"fmt"
	"sync"

	"organ/internal/config"
	"organ/internal/media"
	"organ/internal/services"
)

// Registry hands out one adapter per backend, built lazily from
// configuration. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	cfg      *config.Config
	adapters map[media.Backend]Adapter
}

// NewRegistry constructs an adapter registry.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg:      cfg,
		adapters: make(map[media.Backend]Adapter),
	}
}

// Register installs a pre-built adapter, replacing any configured one.
// Used by tests and by callers with custom transports.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Backend()] = adapter
}

// For returns the adapter serving the backend, constructing it on first
// use. Unknown or unconfigured backends fail with a configuration error.
func (r *Registry) For(backend media.Backend) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.adapters[backend]; ok {
		return adapter, nil
	}

	adapter, err := r.build(backend)
	if err != nil {
		return nil, err
	}
	r.adapters[backend] = adapter
	return adapter, nil
}

func (r *Registry) build(backend media.Backend) (Adapter, error) {
	switch backend {
	case media.BackendLocal:
		return NewLocal(""), nil
	case media.BackendCloud:
		if r.cfg == nil || !r.cfg.CloudDrive.Enabled {
			return nil, services.Wrap(services.ErrConfiguration, "vfs", "registry", "cloud drive backend not enabled", nil)
		}
		transport, err := NewCloudClient(r.cfg.CloudDrive)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "vfs", "registry", err.Error(), nil)
		}
		return NewCloud(transport, r.cfg.CloudDrive.PageSize), nil
	case media.BackendWebDAV:
		if r.cfg == nil || !r.cfg.WebDAV.Enabled {
			return nil, services.Wrap(services.ErrConfiguration, "vfs", "registry", "webdav backend not enabled", nil)
		}
		adapter, err := NewWebDAV(r.cfg.WebDAV)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "vfs", "registry", err.Error(), nil)
		}
		return adapter, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "vfs", "registry", fmt.Sprintf("unknown backend %q", backend), nil)
	}
}
