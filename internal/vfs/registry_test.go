package vfs

import (
	"errors"
	"testing"

	"organ/internal/config"
	"organ/internal/media"
	"organ/internal/services"
)

func TestRegistryLocalAlwaysAvailable(t *testing.T) {
	registry := NewRegistry(&config.Config{})

	adapter, err := registry.For(media.BackendLocal)
	if err != nil {
		t.Fatalf("For(local): %v", err)
	}
	if adapter.Backend() != media.BackendLocal {
		t.Errorf("backend = %s", adapter.Backend())
	}

	again, err := registry.For(media.BackendLocal)
	if err != nil {
		t.Fatalf("second For(local): %v", err)
	}
	if again != adapter {
		t.Error("adapter not cached across calls")
	}
}

func TestRegistryDisabledBackendsAreConfigurationErrors(t *testing.T) {
	registry := NewRegistry(&config.Config{})

	for _, backend := range []media.Backend{media.BackendCloud, media.BackendWebDAV} {
		_, err := registry.For(backend)
		if !errors.Is(err, services.ErrConfiguration) {
			t.Errorf("For(%s) = %v, want configuration error", backend, err)
		}
	}
}

func TestRegistryUnknownBackend(t *testing.T) {
	registry := NewRegistry(&config.Config{})
	if _, err := registry.For(media.Backend("ftp")); !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestRegistryRegisterOverridesConfig(t *testing.T) {
	registry := NewRegistry(&config.Config{})

	custom := NewCloud(newFakeDrive(), 0)
	registry.Register(custom)

	adapter, err := registry.For(media.BackendCloud)
	if err != nil {
		t.Fatalf("For(cloud): %v", err)
	}
	if adapter != Adapter(custom) {
		t.Error("registered adapter not returned")
	}
}

func TestRegistryEnabledBackendsBuild(t *testing.T) {
	cfg := &config.Config{}
	cfg.CloudDrive.Enabled = true
	cfg.CloudDrive.BaseURL = "https://drive.example.com"
	cfg.CloudDrive.Cookie = "UID=1; CID=2"
	cfg.WebDAV.Enabled = true
	cfg.WebDAV.URL = "https://dav.example.com/media"

	registry := NewRegistry(cfg)
	for _, backend := range []media.Backend{media.BackendCloud, media.BackendWebDAV} {
		adapter, err := registry.For(backend)
		if err != nil {
			t.Fatalf("For(%s): %v", backend, err)
		}
		if adapter.Backend() != backend {
			t.Errorf("backend = %s, want %s", adapter.Backend(), backend)
		}
	}
}
