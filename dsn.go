package ocigo

import (
	"bytes"
	"errors"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set"
	"gopkg.in/yaml.v3"

	"github.com/ocigo/oci-connector-go/oci"
)

// Config is the parsed form of a DSN. A DSN is a semicolon separated list
// of key=value pairs:
//
//	user=scott;password=tiger;dbname=//db1:1521/XE;charset=AL32UTF8
//
// Recognized keys are listed in NewConfig, anything else is passed through
// to the native client untouched.
type Config struct {
	Username string // session credentials
	Password string
	Dbname   string // connect identifier: //host:port/service, an alias or a file path
	Charset  string // session character set (default AL32UTF8)

	Client     string // registered native client name, empty picks the only one
	AliasFile  string // optional YAML registry resolving dbname aliases
	Persistent bool   // connect through the client's pooled variant

	Prefetch   int32 // rows fetched ahead per round trip
	Case       int   // column name shape: CaseNatural, CaseLower or CaseUpper
	FetchLOBs  bool  // materialize LOB columns as []byte on fetch
	AutoCommit bool  // commit per statement outside BeginTransaction
	EnableLog  bool
	LogLevel   int // -1 keeps the LOG_LEVEL env default

	// Session params passed through to the native client
	SessionParams map[string]string

	// Recognized DSN key set
	PropertiesSet mapset.Set

	charsetFromDSN bool
}

func NewConfig() *Config {
	cfg := &Config{
		Charset:       defaultCharset,
		Prefetch:      defaultPrefetch,
		Case:          CaseNatural,
		FetchLOBs:     true,
		AutoCommit:    true,
		EnableLog:     true,
		LogLevel:      -1,
		SessionParams: make(map[string]string),
		PropertiesSet: mapset.NewSet(),
	}

	cfg.PropertiesSet.Add("dbname")
	cfg.PropertiesSet.Add("charset")
	cfg.PropertiesSet.Add("user")
	cfg.PropertiesSet.Add("password")
	cfg.PropertiesSet.Add("client")
	cfg.PropertiesSet.Add("aliasfile")
	cfg.PropertiesSet.Add("persistent")
	cfg.PropertiesSet.Add("prefetch")
	cfg.PropertiesSet.Add("case")
	cfg.PropertiesSet.Add("fetchlobs")
	cfg.PropertiesSet.Add("autocommit")
	cfg.PropertiesSet.Add("enablelog")
	cfg.PropertiesSet.Add("loglevel")

	return cfg
}

func (cfg *Config) Clone() *Config {
	newConfig := &Config{
		Username: cfg.Username,
		Password: cfg.Password,
		Dbname:   cfg.Dbname,
		Charset:  cfg.Charset,

		Client:     cfg.Client,
		AliasFile:  cfg.AliasFile,
		Persistent: cfg.Persistent,

		Prefetch:   cfg.Prefetch,
		Case:       cfg.Case,
		FetchLOBs:  cfg.FetchLOBs,
		AutoCommit: cfg.AutoCommit,
		EnableLog:  cfg.EnableLog,
		LogLevel:   cfg.LogLevel,

		charsetFromDSN: cfg.charsetFromDSN,
	}

	if cfg.SessionParams != nil {
		newConfig.SessionParams = make(map[string]string, len(cfg.SessionParams))
		for k, v := range cfg.SessionParams {
			newConfig.SessionParams[k] = v
		}
	}

	newConfig.PropertiesSet = mapset.NewSet()
	for _, item := range cfg.PropertiesSet.ToSlice() {
		newConfig.PropertiesSet.Add(item)
	}

	return newConfig
}

// Option updates a Config before a Connector is built from it.
type Option func(*Config) error

// Apply runs the options against the config in order.
func (cfg *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		err := opt(cfg)
		if err != nil {
			return err
		}
	}
	return nil
}

// WithSessionParam passes one extra key through to the native client.
func WithSessionParam(key, value string) Option {
	return func(cfg *Config) error {
		if key == "" {
			return errors.New("empty session param key")
		}
		cfg.SessionParams[key] = value
		return nil
	}
}

func (cfg *Config) normalize() error {
	if cfg.Dbname == "" {
		return ErrMissingDbname
	}

	if cfg.Charset == "" {
		cfg.Charset = defaultCharset
	}

	if cfg.Prefetch < 0 {
		cfg.Prefetch = 0
	}

	if cfg.AliasFile != "" {
		if err := cfg.resolveAlias(); err != nil {
			return err
		}
	}

	return nil
}

// connectAlias is one entry of the alias registry file: a short name the
// DSN may use as dbname, mapped to the real connect identifier.
type connectAlias struct {
	Dbname  string `yaml:"dbname"`
	Charset string `yaml:"charset,omitempty"`
}

// resolveAlias replaces an aliased dbname with its registry entry. An
// unknown alias is left alone, the native client may resolve the name
// itself. The entry charset applies only when the DSN carried none.
func (cfg *Config) resolveAlias() error {
	raw, err := os.ReadFile(cfg.AliasFile)
	if err != nil {
		return errors.New("reading alias file: " + err.Error())
	}

	aliases := make(map[string]connectAlias)
	if err := yaml.Unmarshal(raw, &aliases); err != nil {
		return errors.New("parsing alias file " + cfg.AliasFile + ": " + err.Error())
	}

	alias, ok := aliases[cfg.Dbname]
	if !ok {
		return nil
	}
	if alias.Dbname == "" {
		return errors.New("alias " + cfg.Dbname + " has no dbname in " + cfg.AliasFile)
	}

	cfg.Dbname = alias.Dbname
	if alias.Charset != "" && !cfg.charsetFromDSN {
		cfg.Charset = alias.Charset
	}
	return nil
}

func writeDSNParam(buf *bytes.Buffer, hasParam *bool, name, value string) {
	buf.Grow(1 + len(name) + 1 + len(value))
	if *hasParam {
		buf.WriteByte(';')
	} else {
		*hasParam = true
	}
	buf.WriteString(name)
	buf.WriteByte('=')
	buf.WriteString(value)
}

// FormatDSN renders the config back into DSN form. Defaults are omitted.
func (cfg *Config) FormatDSN() string {
	var buf bytes.Buffer

	hasParam := false
	if cfg.Username != "" {
		writeDSNParam(&buf, &hasParam, "user", cfg.Username)
	}
	if cfg.Password != "" {
		writeDSNParam(&buf, &hasParam, "password", cfg.Password)
	}
	writeDSNParam(&buf, &hasParam, "dbname", cfg.Dbname)
	if cfg.Charset != defaultCharset {
		writeDSNParam(&buf, &hasParam, "charset", cfg.Charset)
	}
	if cfg.Client != "" {
		writeDSNParam(&buf, &hasParam, "client", cfg.Client)
	}
	if cfg.AliasFile != "" {
		writeDSNParam(&buf, &hasParam, "aliasfile", cfg.AliasFile)
	}
	if cfg.Persistent {
		writeDSNParam(&buf, &hasParam, "persistent", "1")
	}
	if cfg.Prefetch != defaultPrefetch {
		writeDSNParam(&buf, &hasParam, "prefetch", strconv.FormatInt(int64(cfg.Prefetch), 10))
	}
	switch cfg.Case {
	case CaseLower:
		writeDSNParam(&buf, &hasParam, "case", "lower")
	case CaseUpper:
		writeDSNParam(&buf, &hasParam, "case", "upper")
	}
	if !cfg.FetchLOBs {
		writeDSNParam(&buf, &hasParam, "fetchlobs", "0")
	}
	if !cfg.AutoCommit {
		writeDSNParam(&buf, &hasParam, "autocommit", "0")
	}
	if !cfg.EnableLog {
		writeDSNParam(&buf, &hasParam, "enablelog", "0")
	}

	if len(cfg.SessionParams) > 0 {
		var params []string
		for param := range cfg.SessionParams {
			params = append(params, param)
		}
		sort.Strings(params)
		for _, param := range params {
			writeDSNParam(&buf, &hasParam, param, cfg.SessionParams[param])
		}
	}

	return buf.String()
}

// ParseDSN parses the DSN string into a Config.
//
// Each recognized key is pulled out of the whole DSN by its own pattern,
// key=value with the value running to the next ';'. The leftmost match
// wins, so a recognized key appearing inside an earlier value shadows the
// real pair, and a ';' cannot be escaped inside a value. Keys the driver
// does not recognize ride through to the native client via SessionParams.
func ParseDSN(dsn string) (cfg *Config, err error) {

	// New config with some default values
	cfg = NewConfig()

	for _, item := range cfg.PropertiesSet.ToSlice() {
		key := item.(string)
		matches := regexp.MustCompile(key + `=([^;]*)`).FindStringSubmatch(dsn)
		if matches == nil {
			continue
		}
		if err = cfg.set(key, matches[1]); err != nil {
			return nil, err
		}
	}

	for _, pair := range strings.Split(dsn, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		if !cfg.PropertiesSet.Contains(strings.ToLower(key)) {
			cfg.SessionParams[key] = value
		}
	}

	if err = cfg.normalize(); err != nil {
		return nil, err
	}
	return
}

func (cfg *Config) set(key, value string) error {
	switch key {
	case "dbname":
		cfg.Dbname = value
	case "charset":
		if value != "" {
			cfg.Charset = value
			cfg.charsetFromDSN = true
		}
	case "user":
		cfg.Username = value
	case "password":
		cfg.Password = value
	case "client":
		cfg.Client = value
	case "aliasfile":
		cfg.AliasFile = value
	case "persistent":
		var isBool bool
		cfg.Persistent, isBool = readBool(value)
		if !isBool {
			return errors.New("invalid bool value: " + value)
		}
	case "prefetch":
		var isInt32 bool
		cfg.Prefetch, isInt32 = readInt32(value)
		if !isInt32 {
			return errors.New("invalid int32 value: " + value)
		}
	case "case":
		switch strings.ToLower(value) {
		case "natural":
			cfg.Case = CaseNatural
		case "lower":
			cfg.Case = CaseLower
		case "upper":
			cfg.Case = CaseUpper
		default:
			return errors.New("invalid case value: " + value)
		}
	case "fetchlobs":
		var isBool bool
		cfg.FetchLOBs, isBool = readBool(value)
		if !isBool {
			return errors.New("invalid bool value: " + value)
		}
	case "autocommit":
		var isBool bool
		cfg.AutoCommit, isBool = readBool(value)
		if !isBool {
			return errors.New("invalid bool value: " + value)
		}
	case "enablelog":
		var isBool bool
		cfg.EnableLog, isBool = readBool(value)
		if !isBool {
			return errors.New("invalid bool value: " + value)
		}
	case "loglevel":
		cfg.LogLevel = ParseLevel(value)
	default:

	}
	return nil
}

// sessionConfig shapes the config into what the native connect call needs.
func (cfg *Config) sessionConfig() oci.SessionConfig {
	params := make(map[string]string, len(cfg.SessionParams))
	for k, v := range cfg.SessionParams {
		params[k] = v
	}
	return oci.SessionConfig{
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Dbname,
		Charset:  cfg.Charset,
		Pooled:   cfg.Persistent,
		Params:   params,
	}
}

// attributes seeds the connection attribute map from the config.
func (cfg *Config) attributes() map[Attr]interface{} {
	return map[Attr]interface{}{
		AttrAutoCommit: cfg.AutoCommit,
		AttrPrefetch:   cfg.Prefetch,
		AttrCase:       cfg.Case,
		AttrFetchLOBs:  cfg.FetchLOBs,
	}
}
