package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/signal-dashboard/internal/controller"
	"github.com/DoyleJ11/signal-dashboard/internal/dashboard"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	DefaultAddr          = ":8080"
	DefaultControllerURL = "http://127.0.0.1:5000/traffic_data"
	DefaultPollInterval  = time.Second
	DefaultFlashInterval = 500 * time.Millisecond
	DefaultIntersection  = "default"
)

var DefaultLanes = []string{"North", "South"}

type Config struct {
	Addr        string
	LogLevel    string
	Development bool
	AuditDriver string
	AuditDSN    string

	// AllowedOrigins are extra websocket origin host patterns, e.g.
	// "localhost:*". Same-host origins are always accepted.
	AllowedOrigins []string
	Intersections  []dashboard.Config
}

type intersectionsFile struct {
	Intersections []dashboard.Config `yaml:"intersections"`
}

// Load reads .env files (missing ones are fine), then the environment, then
// the optional intersections file named by INTERSECTIONS_FILE.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests need not touch the
// process environment.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Addr:        get("DASHBOARD_ADDR", DefaultAddr),
		LogLevel:    get("DASHBOARD_LOG_LEVEL", "info"),
		AuditDriver: get("AUDIT_DRIVER", ""),
		AuditDSN:    get("AUDIT_DSN", ""),

		AllowedOrigins: splitList(get("ALLOWED_ORIGINS", "")),
	}

	var err error
	if cfg.Development, err = parseBool(get("DASHBOARD_DEV", "false")); err != nil {
		return Config{}, fmt.Errorf("%w: DASHBOARD_DEV: %v", ErrInvalidConfig, err)
	}

	poll, err := parseDuration(get("POLL_INTERVAL", ""), DefaultPollInterval)
	if err != nil {
		return Config{}, fmt.Errorf("%w: POLL_INTERVAL: %v", ErrInvalidConfig, err)
	}
	blink, err := parseDuration(get("FLASH_INTERVAL", ""), DefaultFlashInterval)
	if err != nil {
		return Config{}, fmt.Errorf("%w: FLASH_INTERVAL: %v", ErrInvalidConfig, err)
	}
	timeout, err := parseDuration(get("REQUEST_TIMEOUT", ""), 0)
	if err != nil {
		return Config{}, fmt.Errorf("%w: REQUEST_TIMEOUT: %v", ErrInvalidConfig, err)
	}

	if path := get("INTERSECTIONS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read intersections file: %w", err)
		}
		if cfg.Intersections, err = ParseIntersections(data); err != nil {
			return Config{}, err
		}
	} else {
		cfg.Intersections = []dashboard.Config{{
			ID:             get("INTERSECTION_ID", DefaultIntersection),
			Endpoint:       get("CONTROLLER_URL", DefaultControllerURL),
			Lanes:          splitLanes(get("LANES", strings.Join(DefaultLanes, ","))),
			RequestTimeout: timeout,
		}}
	}

	// env intervals fill whatever the file left unset
	for i := range cfg.Intersections {
		ic := &cfg.Intersections[i]
		if ic.PollInterval == 0 {
			ic.PollInterval = poll
		}
		if ic.FlashInterval == 0 {
			ic.FlashInterval = blink
		}
		if ic.RequestTimeout == 0 {
			ic.RequestTimeout = timeout
		}
	}

	return cfg, cfg.Validate()
}

func ParseIntersections(data []byte) ([]dashboard.Config, error) {
	var f intersectionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: intersections file: %v", ErrInvalidConfig, err)
	}
	for i := range f.Intersections {
		var lanes []string
		for _, l := range f.Intersections[i].Lanes {
			if c := controller.CanonicalLane(l); c != "" {
				lanes = append(lanes, c)
			}
		}
		f.Intersections[i].Lanes = lanes
	}
	return f.Intersections, nil
}

func (c Config) Validate() error {
	switch c.AuditDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unknown AUDIT_DRIVER %q", ErrInvalidConfig, c.AuditDriver)
	}
	if c.AuditDriver != "" && c.AuditDSN == "" {
		return fmt.Errorf("%w: AUDIT_DSN required for driver %s", ErrInvalidConfig, c.AuditDriver)
	}
	if len(c.Intersections) == 0 {
		return fmt.Errorf("%w: no intersections configured", ErrInvalidConfig)
	}

	seen := map[string]bool{}
	for _, ic := range c.Intersections {
		switch {
		case ic.ID == "":
			return fmt.Errorf("%w: intersection without id", ErrInvalidConfig)
		case seen[ic.ID]:
			return fmt.Errorf("%w: duplicate intersection %q", ErrInvalidConfig, ic.ID)
		case ic.Endpoint == "":
			return fmt.Errorf("%w: intersection %q has no endpoint", ErrInvalidConfig, ic.ID)
		case ic.PollInterval <= 0 || ic.FlashInterval <= 0:
			return fmt.Errorf("%w: intersection %q needs positive intervals", ErrInvalidConfig, ic.ID)
		}
		seen[ic.ID] = true
	}
	return nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	// bare numbers are milliseconds
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitLanes(s string) []string {
	var out []string
	for _, part := range splitList(s) {
		out = append(out, controller.CanonicalLane(part))
	}
	return out
}
