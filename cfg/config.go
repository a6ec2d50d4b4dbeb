package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// BackendProtocol selects how statements reach the search backend
type BackendProtocol string

const (
	BackendHTTP  BackendProtocol = "http"  // JSON over HTTP (/sql?mode=raw)
	BackendMySQL BackendProtocol = "mysql" // MySQL wire protocol
)

// BackendConfiguration describes the search backend
type BackendConfiguration struct {
	Protocol      BackendProtocol `toml:"protocol"`
	URL           string          `toml:"url"`            // HTTP endpoint, e.g. http://127.0.0.1:9308
	DSN           string          `toml:"dsn"`            // go-sql-driver DSN for the mysql protocol
	Path          string          `toml:"path"`           // default routing path for HTTP requests
	BearerToken   string          `toml:"bearer_token"`   // optional Authorization header
	TimeoutMS     int             `toml:"timeout_ms"`     // per-request timeout
	PoolSize      int             `toml:"pool_size"`      // open connections for the mysql protocol
	DatabaseAlias string          `toml:"database_alias"` // database name clients qualify tables with
}

// MySQLConfiguration for the MySQL protocol front end
type MySQLConfiguration struct {
	Enabled        bool   `toml:"enabled"`
	BindAddress    string `toml:"bind_address"`
	Port           int    `toml:"port"`
	UnixSocket     string `toml:"unix_socket"`      // optional unix socket path
	UnixSocketPerm uint32 `toml:"unix_socket_perm"` // socket file mode, e.g. 0660
	MaxConnections int    `toml:"max_connections"`
	ServerVersion  string `toml:"server_version"`
	VersionComment string `toml:"version_comment"`
}

// AdminConfiguration for the HTTP API
type AdminConfiguration struct {
	Enabled            bool   `toml:"enabled"`
	BindAddress        string `toml:"bind_address"`
	Port               int    `toml:"port"`
	Secret             string `toml:"secret"`               // PSK for the admin API, empty disables authentication
	StatementStatsSize int    `toml:"statement_stats_size"` // distinct statements tracked
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled                bool `toml:"enabled"`
	CollectIntervalSeconds int  `toml:"collect_interval_seconds"`
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID string `toml:"instance_id"`

	Backend    BackendConfiguration    `toml:"backend"`
	MySQL      MySQLConfiguration      `toml:"mysql"`
	Admin      AdminConfiguration      `toml:"admin"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	MySQLPortFlag  = flag.Int("mysql-port", 0, "MySQL port (overrides config)")
	HTTPPortFlag   = flag.Int("http-port", 0, "Admin HTTP port (overrides config)")
	BackendURLFlag = flag.String("backend-url", "", "Backend HTTP endpoint (overrides config)")
)

// Default configuration
var Config = &Configuration{
	InstanceID: "", // Auto-generate

	Backend: BackendConfiguration{
		Protocol:      BackendHTTP,
		URL:           "http://127.0.0.1:9308",
		DSN:           "",
		Path:          "sql?mode=raw",
		TimeoutMS:     60000,
		PoolSize:      4,
		DatabaseAlias: "Manticore",
	},

	MySQL: MySQLConfiguration{
		Enabled:        true,
		BindAddress:    "0.0.0.0",
		Port:           3307,
		UnixSocketPerm: 0660,
		MaxConnections: 1000,
		ServerVersion:  "8.0.32-infobridge",
		VersionComment: "infobridge",
	},

	Admin: AdminConfiguration{
		Enabled:            true,
		BindAddress:        "0.0.0.0",
		Port:               9309,
		StatementStatsSize: 1024,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled:                true,
		CollectIntervalSeconds: 15,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	// Apply CLI overrides
	if *MySQLPortFlag != 0 {
		Config.MySQL.Port = *MySQLPortFlag
	}
	if *HTTPPortFlag != 0 {
		Config.Admin.Port = *HTTPPortFlag
	}
	if *BackendURLFlag != "" {
		Config.Backend.URL = *BackendURLFlag
	}

	if Config.InstanceID == "" {
		id, err := generateInstanceID()
		if err != nil {
			hostname, herr := os.Hostname()
			if herr != nil {
				return fmt.Errorf("failed to generate instance ID: %w", err)
			}
			log.Warn().Err(err).Str("hostname", hostname).Msg("Machine ID unavailable, using hostname as instance ID")
			id = hostname
		}
		Config.InstanceID = id
		log.Info().Str("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	return nil
}

// generateInstanceID derives a stable instance ID from the machine ID
func generateInstanceID() (string, error) {
	id, err := machineid.ProtectedID("infobridge")
	if err != nil {
		return "", err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// Validate checks configuration for errors
func Validate() error {
	switch Config.Backend.Protocol {
	case BackendHTTP:
		u, err := url.Parse(Config.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid backend URL: %q", Config.Backend.URL)
		}
	case BackendMySQL:
		if Config.Backend.DSN == "" {
			return fmt.Errorf("backend DSN is required for the mysql protocol")
		}
		if Config.Backend.PoolSize < 1 {
			return fmt.Errorf("backend pool size must be >= 1")
		}
	default:
		return fmt.Errorf("invalid backend protocol: %q", Config.Backend.Protocol)
	}

	if Config.Backend.TimeoutMS < 1 {
		return fmt.Errorf("backend timeout must be >= 1ms")
	}

	if Config.Backend.DatabaseAlias == "" {
		return fmt.Errorf("backend database alias must not be empty")
	}

	if Config.MySQL.Enabled && (Config.MySQL.Port < 1 || Config.MySQL.Port > 65535) {
		return fmt.Errorf("invalid MySQL port: %d", Config.MySQL.Port)
	}

	if Config.MySQL.Enabled && Config.MySQL.MaxConnections < 1 {
		return fmt.Errorf("MySQL max connections must be >= 1")
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Admin.StatementStatsSize < 1 {
		return fmt.Errorf("statement stats size must be >= 1")
	}

	if !Config.MySQL.Enabled && !Config.Admin.Enabled {
		return fmt.Errorf("at least one of mysql or admin must be enabled")
	}

	if Config.Logging.Format != "" && Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	if Config.Prometheus.Enabled && Config.Prometheus.CollectIntervalSeconds < 1 {
		return fmt.Errorf("prometheus collect interval must be >= 1 second")
	}

	return nil
}
