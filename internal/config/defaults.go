package config

const (
	defaultDataDir = "~/.local/share/ocrkit"
	defaultLogDir  = "~/.local/share/ocrkit/logs"
	defaultAPIBind = "127.0.0.1:7419"

	defaultMaxContentMiB        = 32
	defaultMaxBatchJobs         = 64
	defaultRateWindowSeconds    = 60
	defaultRateMaxRequests      = 120
	defaultBatchRateMaxRequests = 10

	defaultQueueMaxDepth         = 1024
	defaultAgingThresholdSeconds = 30
	defaultAgingSweepSeconds     = 5

	defaultWorkerCount            = 4
	defaultJobTimeoutSeconds      = 120
	defaultMaxAttempts            = 3
	defaultRetryBackoffSeconds    = 2
	defaultRetryBackoffMaxSeconds = 60

	defaultCacheMaxEntries = 4096
	defaultCacheMaxMiB     = 256

	defaultRingCapacity     = 512
	defaultSubscriberBuffer = 16

	defaultEngineName = "tesseract"

	defaultRegistryRetentionSeconds = 3600
	defaultPurgeIntervalSeconds     = 60

	defaultArchiveRetentionDays = 30

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Intake: Intake{
			MaxContentMiB:        defaultMaxContentMiB,
			MaxBatchJobs:         defaultMaxBatchJobs,
			RateWindowSeconds:    defaultRateWindowSeconds,
			RateMaxRequests:      defaultRateMaxRequests,
			BatchRateMaxRequests: defaultBatchRateMaxRequests,
		},
		Queue: Queue{
			MaxDepth:              defaultQueueMaxDepth,
			AgingThresholdSeconds: defaultAgingThresholdSeconds,
			AgingSweepSeconds:     defaultAgingSweepSeconds,
		},
		Workers: Workers{
			Count:                  defaultWorkerCount,
			JobTimeoutSeconds:      defaultJobTimeoutSeconds,
			MaxAttempts:            defaultMaxAttempts,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			RetryBackoffMaxSeconds: defaultRetryBackoffMaxSeconds,
		},
		Cache: Cache{
			MaxEntries: defaultCacheMaxEntries,
			MaxMiB:     defaultCacheMaxMiB,
		},
		Broadcast: Broadcast{
			RingCapacity:     defaultRingCapacity,
			SubscriberBuffer: defaultSubscriberBuffer,
		},
		Engine: Engine{
			Name:          defaultEngineName,
			Languages:     []string{"eng"},
			PaddleCommand: "paddleocr",
		},
		Registry: Registry{
			RetentionSeconds:     defaultRegistryRetentionSeconds,
			PurgeIntervalSeconds: defaultPurgeIntervalSeconds,
		},
		Archive: Archive{
			Enabled:       true,
			RetentionDays: defaultArchiveRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
