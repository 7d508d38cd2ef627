package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/organ/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'organ config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.Enabled && strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key must be set when llm.enabled is true (or set OPENROUTER_API_KEY)")
	}
	return nil
}

func (c *Config) validateRecognizer() error {
	switch c.Recognizer.MinConfidence {
	case "high", "medium", "low":
	default:
		return fmt.Errorf("recognizer.min_confidence must be high, medium, or low (got %q)", c.Recognizer.MinConfidence)
	}
	return nil
}

func (c *Config) validateBackends() error {
	if c.CloudDrive.Enabled && strings.TrimSpace(c.CloudDrive.Cookie) == "" {
		return errors.New("clouddrive.cookie must be set when clouddrive.enabled is true (or set CLOUDDRIVE_COOKIE)")
	}
	if c.WebDAV.Enabled {
		if strings.TrimSpace(c.WebDAV.URL) == "" {
			return errors.New("webdav.url must be set when webdav.enabled is true")
		}
		if !strings.HasPrefix(c.WebDAV.URL, "http://") && !strings.HasPrefix(c.WebDAV.URL, "https://") {
			return fmt.Errorf("webdav.url must be an http(s) URL (got %q)", c.WebDAV.URL)
		}
	}
	return nil
}

func (c *Config) validateTransfer() error {
	switch c.Transfer.NamingPreset {
	case "emby_standard", "plex_standard":
	default:
		return fmt.Errorf("transfer.naming_preset must be emby_standard or plex_standard (got %q)", c.Transfer.NamingPreset)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"monitor.scan_interval":         c.Monitor.ScanInterval,
		"monitor.quiescence_seconds":    c.Monitor.QuiescenceSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
