package cfg

type Cfg struct {
	// Storage
	SourcesDir  string
	DBPath      string
	SettingsKey string

	// Application configuration
	Port            string
	BaseUrl         string
	WorkerCount     int
	RefreshSchedule string
	APIAccessKey    string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
