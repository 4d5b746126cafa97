package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Discord configuration
	DiscordToken  string `long:"discord-token" env:"DISCORD_TOKEN" description:"Discord bot token (required)" required:"true"`
	OwnerID       string `long:"owner-id" env:"OWNER_ID" description:"Discord user ID allowed to run owner commands (defaults to the application owner)"`
	CommandPrefix string `long:"command-prefix" env:"COMMAND_PREFIX" default:"!" description:"Prefix for chat commands"`

	// Storage configuration
	Storage       string `long:"storage" env:"STORAGE" default:"sqlite" choice:"sqlite" choice:"redis" description:"Storage backend"`
	DBPath        string `long:"db-path" env:"DB_PATH" default:"./data/postcard.db" description:"SQLite database path"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Auto post check interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Postcard/1.0" description:"User agent string for HTTP requests"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"Write JSON logs to this file with rotation instead of stderr"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load reads .env (if present), then flags and environment. It returns nil,
// nil when help was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	return parse(os.Args[1:])
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.Storage != StorageSQLite && raw.Storage != StorageRedis {
		return nil, fmt.Errorf("unknown storage backend %q", raw.Storage)
	}

	if raw.SchedulerInterval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %d", raw.SchedulerInterval)
	}

	return &Cfg{
		DiscordToken:      raw.DiscordToken,
		OwnerID:           raw.OwnerID,
		CommandPrefix:     raw.CommandPrefix,
		Storage:           raw.Storage,
		DBPath:            raw.DBPath,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		SchedulerInterval: raw.SchedulerInterval,
		FetchTimeout:      raw.FetchTimeout,
		UserAgent:         raw.UserAgent,
		LogFile:           raw.LogFile,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}, nil
}
