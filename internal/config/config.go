package config

// Capacity bounds for the collections held by a Config. Reads that would
// exceed a bound fail with ErrCapacity instead of truncating.
const (
	MaxServers   = 64
	MaxUsers     = 64
	MaxAdmins    = 8
	MaxEndpoints = 32
)

// MainSection is the reserved section name for global settings. No server
// may use it (or "all") as its name.
const MainSection = "pgexporter"

// Sentinel value meaning "port not configured" for the metrics, bridge,
// bridge_json and management listeners.
const PortDisabled = -1

// Default values applied before parsing a configuration file.
const (
	DefaultBridgeCacheMaxAge       = 300 // seconds
	DefaultBridgeCacheMaxSize      = 2 * 1024 * 1024
	DefaultBridgeJSONCacheMaxSize  = 2 * 1024 * 1024
	DefaultBlockingTimeout         = 30
	DefaultAuthenticationTimeout   = 5
	DefaultBacklog                 = 16
	MinBacklog                     = 16
	MaxMetricsCacheSize            = 8 * 1024 * 1024
	MaxBridgeCacheSize             = 32 * 1024 * 1024
	MaxBridgeJSONCacheSize         = 32 * 1024 * 1024
	DefaultGeneratedPasswordLength = 64
)

// Hugepage policies.
const (
	HugepageOff = iota
	HugepageTry
	HugepageOn
)

// Process title update policies.
const (
	UpdateProcessTitleNever = iota
	UpdateProcessTitleStrict
	UpdateProcessTitleMinimal
	UpdateProcessTitleVerbose
)

// Config is the full typed configuration record. One instance is live at a
// time; reload and single-key mutation build a candidate instance and adopt
// it atomically through State.
type Config struct {
	// Global settings ([pgexporter] section).
	Host          string
	UnixSocketDir string
	PidFile       string
	Libev         string

	Metrics            int // metrics listener port, PortDisabled when off
	MetricsPath        string
	MetricsCacheMaxAge int // seconds
	MetricsCacheSize   int64

	Bridge              int // bridge listener port, PortDisabled when off
	BridgeCacheMaxAge   int
	BridgeCacheSize     int64
	BridgeJSON          int // bridge JSON listener port, PortDisabled when off
	BridgeJSONCacheSize int64

	Management int // remote management port, 0 when off

	Cache bool

	TLS             bool
	TLSCertFile     string
	TLSKeyFile      string
	TLSCAFile       string
	MetricsCertFile string
	MetricsKeyFile  string
	MetricsCAFile   string

	BlockingTimeout       int
	AuthenticationTimeout int

	KeepAlive   bool
	NoDelay     bool
	NonBlocking bool
	Backlog     int
	Hugepage    int
	ProcTitle   int

	GlobalExtensions string

	Log LogConfig

	// Bounded collections.
	Servers   []Server
	Users     []User
	Admins    []User
	Endpoints []Endpoint

	// Metric definitions loaded from internal defaults plus MetricsPath.
	MetricDefs []MetricDef

	// Paths recorded at first load so Reload can re-read the same files.
	ConfigurationPath string
	UsersPath         string
	AdminsPath        string
}

// LogConfig is the log-subsystem field group. If Path, RotationSize,
// RotationAge or Mode differ after a reload, the logging subsystem is
// stopped and restarted during adoption.
type LogConfig struct {
	Type         string // console | file | syslog
	Level        string // debug1..debug5 | info | warn | error | fatal
	Path         string
	RotationSize int64  // bytes, 0 disables rotation
	RotationAge  int    // seconds, 0 disables rotation
	Mode         string // append | create
	LinePrefix   string
}

// Server is one monitored database endpoint, declared by a non-reserved
// [name] section. It is finalized when the next section header or EOF is
// reached, and mutated afterwards only through State.Set.
type Server struct {
	Name        string
	Host        string
	Port        int
	Username    string
	DataDir     string
	WALDir      string
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string
	Extensions  string
}

// User is a decrypted credential pair. The on-disk source of truth is the
// vault file; passwords exist in plaintext only in memory.
type User struct {
	Username string
	Password string
}

// Endpoint is one bridge export target, deduplicated by (host, port).
type Endpoint struct {
	Host string
	Port int
}

// MetricDef is one custom metric collection definition loaded from YAML.
// The full schema lives in internal/metrics; config carries the parsed
// records so reload can diff and adopt them with everything else.
type MetricDef struct {
	Tag        string
	Collector  string
	SortKey    string // name | data
	ServerKind string // primary | replica | both
	Queries    []MetricQuery
}

// MetricQuery is a single query variant under a MetricDef.
type MetricQuery struct {
	Query   string
	Version int
	Columns []MetricColumn
}

// MetricColumn describes one result column of a MetricQuery.
type MetricColumn struct {
	Name        string
	Type        string // label | counter | gauge | histogram
	Description string
}

// New returns a Config populated with defaults, ready for ReadConfiguration.
func New() *Config {
	return &Config{
		Metrics:               PortDisabled,
		Bridge:                PortDisabled,
		BridgeJSON:            PortDisabled,
		BridgeCacheMaxAge:     DefaultBridgeCacheMaxAge,
		BridgeCacheSize:       DefaultBridgeCacheMaxSize,
		BridgeJSONCacheSize:   DefaultBridgeJSONCacheMaxSize,
		Cache:                 true,
		BlockingTimeout:       DefaultBlockingTimeout,
		AuthenticationTimeout: DefaultAuthenticationTimeout,
		KeepAlive:             true,
		NoDelay:               true,
		NonBlocking:           true,
		Backlog:               DefaultBacklog,
		Hugepage:              HugepageTry,
		ProcTitle:             UpdateProcessTitleVerbose,
		Log: LogConfig{
			Type:  "console",
			Level: "info",
			Mode:  "append",
		},
	}
}

// FindServer returns the index of the server with the given name, or -1.
func (c *Config) FindServer(name string) int {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of c. The copy shares nothing with the
// original, so it can be mutated and validated as a scratch record.
func (c *Config) Clone() *Config {
	out := *c
	out.Servers = append([]Server(nil), c.Servers...)
	out.Users = append([]User(nil), c.Users...)
	out.Admins = append([]User(nil), c.Admins...)
	out.Endpoints = append([]Endpoint(nil), c.Endpoints...)
	out.MetricDefs = make([]MetricDef, len(c.MetricDefs))
	for i, d := range c.MetricDefs {
		nd := d
		nd.Queries = make([]MetricQuery, len(d.Queries))
		for j, q := range d.Queries {
			nq := q
			nq.Columns = append([]MetricColumn(nil), q.Columns...)
			nd.Queries[j] = nq
		}
		out.MetricDefs[i] = nd
	}
	return &out
}
