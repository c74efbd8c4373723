package config

const (
	defaultPhotosDir            = "~/Pictures"
	defaultAlbumsDir            = "~/Pictures/Albums"
	defaultTrashDir             = "~/.local/share/phototriage/trash"
	defaultStateDir             = "~/.local/share/phototriage"
	defaultPageSize             = 48
	defaultMaxFetchAttempts     = 5
	defaultClassifierThreshold  = 0.8
	defaultClassifierDecodeEdge = 224
	defaultDeletionBatchSize    = 10
	defaultCacheMaxBytes        = 120_000_000
	defaultCacheMaxEntries      = 200
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PhotosDir: defaultPhotosDir,
			AlbumsDir: defaultAlbumsDir,
			TrashDir:  defaultTrashDir,
			StateDir:  defaultStateDir,
		},
		Paging: Paging{
			PageSize:         defaultPageSize,
			MaxFetchAttempts: defaultMaxFetchAttempts,
		},
		Classifier: Classifier{
			Threshold:  defaultClassifierThreshold,
			DecodeEdge: defaultClassifierDecodeEdge,
		},
		Deletion: Deletion{
			AutoBatch: true,
			BatchSize: defaultDeletionBatchSize,
		},
		Cache: Cache{
			MaxBytes:   defaultCacheMaxBytes,
			MaxEntries: defaultCacheMaxEntries,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Scan:           true,
			Deletion:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
