package config

const (
	defaultDataDir            = "~/.local/share/organ"
	defaultLogDir             = "~/.local/share/organ/logs"
	defaultReviewDir          = "~/review"
	defaultLogRetentionDays   = 60
	defaultTMDBLanguage       = "zh-CN"
	defaultTMDBBaseURL        = "https://api.themoviedb.org/3"
	defaultTMDBRateLimit      = 40.0
	defaultLLMRateLimit       = 2.0
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds  = 60
	defaultLLMBatchSize       = 50
	defaultCacheTTLDays       = 30
	defaultMinConfidence      = "medium"
	defaultMaxParallel        = 4
	defaultCloudBaseURL       = "https://webapi.115.com"
	defaultCloudPageSize      = 1000
	defaultRequestTimeout     = 30
	defaultNamingPreset       = "emby_standard"
	defaultTransferWorkers    = 2
	defaultMinFileSizeMB      = 100
	defaultScanInterval       = 300
	defaultQuiescenceSeconds  = 5
	defaultNotifyTimeout      = 10
	defaultDedupWindowSeconds = 600
	defaultAPIBind            = "127.0.0.1:7300"
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ReviewDir: defaultReviewDir,
		},
		TMDB: TMDB{
			Languages: []string{defaultTMDBLanguage},
			BaseURL:   defaultTMDBBaseURL,
			RateLimit: defaultTMDBRateLimit,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			BatchSize:      defaultLLMBatchSize,
			RateLimit:      defaultLLMRateLimit,
		},
		Recognizer: Recognizer{
			CacheTTLDays:  defaultCacheTTLDays,
			MinConfidence: defaultMinConfidence,
			MaxParallel:   defaultMaxParallel,
		},
		CloudDrive: CloudDrive{
			BaseURL:        defaultCloudBaseURL,
			PageSize:       defaultCloudPageSize,
			RequestTimeout: defaultRequestTimeout,
		},
		WebDAV: WebDAV{
			RequestTimeout: defaultRequestTimeout,
		},
		Transfer: Transfer{
			NamingPreset:  defaultNamingPreset,
			Workers:       defaultTransferWorkers,
			MinFileSizeMB: defaultMinFileSizeMB,
		},
		Monitor: Monitor{
			ScanInterval:      defaultScanInterval,
			QuiescenceSeconds: defaultQuiescenceSeconds,
			Recursive:         true,
			AutoApprove:       true,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			Recognition:        true,
			Transfer:           true,
			Review:             true,
			Errors:             true,
			DedupWindowSeconds: defaultDedupWindowSeconds,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
