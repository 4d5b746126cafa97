package cfg

type Cfg struct {
	// Discord configuration
	DiscordToken  string
	OwnerID       string
	CommandPrefix string

	// Storage configuration
	Storage       string
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Application configuration
	Port              string
	APIAccessKey      string
	SchedulerInterval int
	FetchTimeout      int

	// Application metadata
	UserAgent string
	LogFile   string
	Debug     bool
	Version   string
}

const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)
