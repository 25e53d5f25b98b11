package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/almanac/internal/para"
	"github.com/starford/almanac/internal/period"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var (
	headingRe = regexp.MustCompile(`^#{1,6} \S`)
	httpURLRe = regexp.MustCompile(`^https?://[^\s/]+`)
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Vault       VaultConfig       `yaml:"vault"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
	Periodic    PeriodicConfig    `yaml:"periodic"`
	Para        ParaConfig        `yaml:"para"`
	DailyRecord DailyRecordConfig `yaml:"daily_record"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Vault, &c.SQLite, &c.Auth, &c.Periodic, &c.Para, &c.DailyRecord} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// PeriodicConfig describes the periodic-notes folder.
type PeriodicConfig struct {
	Folder string `yaml:"folder"`
	// Timezone is an IANA zone name; empty means the host's local zone.
	Timezone string `yaml:"timezone"`
	// Templates maps day/week/month/quarter/year to a template note path.
	Templates map[string]string `yaml:"templates"`
}

// Validate validates the periodic configuration.
func (c *PeriodicConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Folder, validation.Required),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
		validation.Field(&c.Templates, validation.By(func(any) error {
			_, err := c.TemplateKinds()
			return err
		})),
	)
}

// Location resolves Timezone.
func (c *PeriodicConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	return loc, nil
}

// TemplateKinds returns Templates keyed by period kind.
func (c *PeriodicConfig) TemplateKinds() (map[period.Kind]string, error) {
	out := make(map[period.Kind]string, len(c.Templates))
	for k, path := range c.Templates {
		kind, err := period.ParseKind(k)
		if err != nil {
			return nil, err
		}
		out[kind] = path
	}
	return out, nil
}

// ParaConfig maps the PARA categories to vault folders.
type ParaConfig struct {
	Projects  string `yaml:"projects"`
	Areas     string `yaml:"areas"`
	Resources string `yaml:"resources"`
	Archives  string `yaml:"archives"`
	// IndexName names the index note of an item; empty uses the folder name.
	IndexName string `yaml:"index_name"`
}

// Validate validates the PARA configuration.
func (c *ParaConfig) Validate() error {
	seen := map[string]bool{}
	for _, f := range []string{c.Projects, c.Areas, c.Resources, c.Archives} {
		if f == "" {
			continue
		}
		if seen[f] {
			return fmt.Errorf("para: folder %q is used by more than one category", f)
		}
		seen[f] = true
	}
	return nil
}

// Folders returns the configured folders by category.
func (c *ParaConfig) Folders() map[para.Category]string {
	return map[para.Category]string{
		para.Projects:  c.Projects,
		para.Areas:     c.Areas,
		para.Resources: c.Resources,
		para.Archives:  c.Archives,
	}
}

// DailyRecordConfig configures the memo sync. The sync is off while API or
// Token is empty.
type DailyRecordConfig struct {
	API              string        `yaml:"api"`
	Token            string        `yaml:"token"`
	Header           string        `yaml:"header"`
	AutoCreate       bool          `yaml:"auto_create"`
	WarnMissing      bool          `yaml:"warn_missing"`
	AttachmentFolder string        `yaml:"attachment_folder"`
	Interval         time.Duration `yaml:"interval"`
	CreateDelay      time.Duration `yaml:"create_delay"`
	Concurrency      int           `yaml:"concurrency"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Enabled reports whether enough is configured to sync.
func (c *DailyRecordConfig) Enabled() bool {
	return c.API != "" && c.Token != ""
}

// Validate validates the daily-record configuration.
func (c *DailyRecordConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.API, validation.Match(httpURLRe).Error("must be an http(s) URL")),
		validation.Field(&c.Header, validation.Required, validation.Match(headingRe).Error("must be a Markdown heading such as \"## Daily Record\"")),
		validation.Field(&c.AttachmentFolder, validation.Required),
		validation.Field(&c.Interval, validation.By(func(any) error {
			if c.Interval != 0 && c.Interval < time.Minute {
				return errors.New("must be at least 1m")
			}
			return nil
		})),
		validation.Field(&c.Concurrency, validation.Min(0), validation.Max(32)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./almanac.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Periodic: PeriodicConfig{
			Folder: "PeriodicNotes",
		},
		Para: ParaConfig{
			Projects:  "1. Projects",
			Areas:     "2. Areas",
			Resources: "3. Resources",
			Archives:  "4. Archives",
		},
		DailyRecord: DailyRecordConfig{
			Header:           "## Daily Record",
			WarnMissing:      true,
			AttachmentFolder: "Attachments/memos",
			Interval:         30 * time.Minute,
			CreateDelay:      500 * time.Millisecond,
			Concurrency:      4,
			Timeout:          30 * time.Second,
		},
	}
}
