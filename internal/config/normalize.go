package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeLLM()
	c.normalizeRecognizer()
	c.normalizeCloudDrive()
	c.normalizeWebDAV()
	c.normalizeTransfer()
	c.normalizeMonitor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	languages := make([]string, 0, len(c.TMDB.Languages))
	for _, lang := range c.TMDB.Languages {
		if trimmed := strings.TrimSpace(lang); trimmed != "" {
			languages = append(languages, trimmed)
		}
	}
	if len(languages) == 0 {
		languages = []string{defaultTMDBLanguage}
	}
	c.TMDB.Languages = languages
	if c.TMDB.RateLimit <= 0 {
		c.TMDB.RateLimit = defaultTMDBRateLimit
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.BatchSize <= 0 {
		c.LLM.BatchSize = defaultLLMBatchSize
	}
	if c.LLM.RateLimit <= 0 {
		c.LLM.RateLimit = defaultLLMRateLimit
	}
}

func (c *Config) normalizeRecognizer() {
	if c.Recognizer.CacheTTLDays < 0 {
		c.Recognizer.CacheTTLDays = 0
	}
	c.Recognizer.MinConfidence = strings.ToLower(strings.TrimSpace(c.Recognizer.MinConfidence))
	if c.Recognizer.MinConfidence == "" {
		c.Recognizer.MinConfidence = defaultMinConfidence
	}
	if c.Recognizer.MaxParallel <= 0 {
		c.Recognizer.MaxParallel = defaultMaxParallel
	}
}

func (c *Config) normalizeCloudDrive() {
	c.CloudDrive.BaseURL = strings.TrimRight(strings.TrimSpace(c.CloudDrive.BaseURL), "/")
	if c.CloudDrive.BaseURL == "" {
		c.CloudDrive.BaseURL = defaultCloudBaseURL
	}
	c.CloudDrive.Cookie = strings.TrimSpace(c.CloudDrive.Cookie)
	if c.CloudDrive.Cookie == "" {
		if value, ok := os.LookupEnv("CLOUDDRIVE_COOKIE"); ok {
			c.CloudDrive.Cookie = strings.TrimSpace(value)
		}
	}
	if c.CloudDrive.PageSize <= 0 {
		c.CloudDrive.PageSize = defaultCloudPageSize
	}
	if c.CloudDrive.RequestTimeout <= 0 {
		c.CloudDrive.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeWebDAV() {
	c.WebDAV.URL = strings.TrimRight(strings.TrimSpace(c.WebDAV.URL), "/")
	c.WebDAV.Username = strings.TrimSpace(c.WebDAV.Username)
	if c.WebDAV.Password == "" {
		if value, ok := os.LookupEnv("WEBDAV_PASSWORD"); ok {
			c.WebDAV.Password = value
		}
	}
	if c.WebDAV.RequestTimeout <= 0 {
		c.WebDAV.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeTransfer() {
	c.Transfer.NamingPreset = strings.ToLower(strings.TrimSpace(c.Transfer.NamingPreset))
	if c.Transfer.NamingPreset == "" {
		c.Transfer.NamingPreset = defaultNamingPreset
	}
	if c.Transfer.Workers <= 0 {
		c.Transfer.Workers = defaultTransferWorkers
	}
	if c.Transfer.MinFileSizeMB < 0 {
		c.Transfer.MinFileSizeMB = 0
	}
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.ScanInterval <= 0 {
		c.Monitor.ScanInterval = defaultScanInterval
	}
	if c.Monitor.QuiescenceSeconds <= 0 {
		c.Monitor.QuiescenceSeconds = defaultQuiescenceSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
