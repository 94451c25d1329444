package config

// Config is the root configuration file. JSON and YAML are both accepted.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Catalog   CatalogConfig   `json:"catalog"`
	AI        AIConfig        `json:"ai"`
	Trending  TrendingConfig  `json:"trending"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Ephemeral EphemeralConfig `json:"ephemeral"`
	Links     LinksConfig     `json:"links"`
	Cache     CacheConfig     `json:"cache"`
	Storage   StorageConfig   `json:"storage"`
	Ops       OpsConfig       `json:"ops"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	PollTimeout  string  `json:"poll_timeout"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`

	// LogChat receives warn+ log lines when logging.telegram.enabled is set.
	LogChat int64 `json:"log_chat"`

	// Workers is the router worker pool size.
	Workers        int    `json:"workers"`
	CommandTimeout string `json:"command_timeout"`
	CropPosters    bool   `json:"crop_posters"`
	WelcomeNew     bool   `json:"welcome_new_members"`

	// AdminUsername and WelcomeImage decorate /start.
	AdminUsername string `json:"admin_username"`
	WelcomeImage  string `json:"welcome_image"`
}

type LoggingConfig struct {
	Level    string            `json:"level"`
	Console  bool              `json:"console"`
	File     LoggingFileConfig `json:"file"`
	Telegram LoggingChatConfig `json:"telegram"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChatConfig struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type CatalogConfig struct {
	OMDbKey     string  `json:"omdb_key"`
	OMDbBaseURL string  `json:"omdb_base_url"`
	TMDbKey     string  `json:"tmdb_key"`
	TMDbBaseURL string  `json:"tmdb_base_url"`
	ImageBase   string  `json:"image_base"`
	Region      string  `json:"region"`
	Timeout     string  `json:"timeout"`
	RatePerSec  float64 `json:"rate_per_sec"`
	Burst       int     `json:"burst"`
}

type AIConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	Timeout string `json:"timeout"`
}

type TrendingConfig struct {
	TMDb     bool     `json:"tmdb"`
	IMDbURL  string   `json:"imdb_url"`
	Feeds    []string `json:"feeds"`
	Static   []string `json:"static"`
	CacheTTL string   `json:"cache_ttl"`
	Timeout  string   `json:"timeout"`
}

type BroadcastConfig struct {
	Enabled     bool     `json:"enabled"`
	Targets     []int64  `json:"targets"`
	Interval    string   `json:"interval"`
	Warmup      string   `json:"warmup"`
	Window      int      `json:"window"`
	Categories  []string `json:"categories"`
	PerCategory int      `json:"per_category"`
	DeleteAfter string   `json:"delete_after"`
	Workers     int      `json:"workers"`
	RatePerSec  float64  `json:"rate_per_sec"`
	SendTimeout string   `json:"send_timeout"`
}

type EphemeralConfig struct {
	DeleteAfter string `json:"delete_after"`
}

// LinksConfig holds the streaming mirror bases appended to captions.
type LinksConfig struct {
	Server1  string `json:"server1"`
	Server2  string `json:"server2"`
	Download string `json:"download"`
}

type CacheConfig struct {
	// Driver is "memory" (default), "redis" or "none".
	Driver   string `json:"driver"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	TTL      string `json:"ttl"`
	Prefix   string `json:"prefix"`
}

type StorageConfig struct {
	// Driver is "sqlite" (default), "file" or "none".
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"`
}

type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr"`
	Token         string `json:"token"`
	AllowInsecure bool   `json:"allow_insecure"`
	Pprof         bool   `json:"pprof"`
	RatePerMin    int    `json:"rate_per_min"`
	ReadTimeout   string `json:"read_timeout"`
	WriteTimeout  string `json:"write_timeout"`
}

type SchedulerConfig struct {
	Timezone string `json:"timezone"`
}
