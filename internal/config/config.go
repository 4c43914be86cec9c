package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-finder/internal/facematch"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	PhotoPrism PhotoPrismConfig `yaml:"photoprism"`
	Drive      DriveConfig      `yaml:"drive"`
	Dir        DirConfig        `yaml:"dir"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Face       FaceConfig       `yaml:"face"`
	Scan       ScanConfig       `yaml:"scan"`
	Web        WebConfig        `yaml:"web"`
	Log        LogConfig        `yaml:"log"`
}

type PhotoPrismConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"-"` // only from the environment
}

type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"` // OAuth client secret
	TokenFile       string `yaml:"token_file"`       // cached user token
}

type DirConfig struct {
	Root string `yaml:"root"` // albums of the dir source are resolved inside it
}

type EmbeddingConfig struct {
	URL string `yaml:"url"`
}

type FaceConfig struct {
	Backend   string `yaml:"backend"`    // http or dlib
	ModelsDir string `yaml:"models_dir"` // dlib model files
}

type ScanConfig struct {
	Source      string                   `yaml:"source"`
	Model       facematch.DetectionModel `yaml:"model"`
	Tolerance   float64                  `yaml:"tolerance"`
	Concurrency int                      `yaml:"concurrency"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults, the optional
// yaml file at path and finally the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path == "" {
		path = os.Getenv("FINDER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.PhotoPrism.URL = envString("PHOTOPRISM_URL", c.PhotoPrism.URL)
	c.PhotoPrism.Username = envString("PHOTOPRISM_USERNAME", c.PhotoPrism.Username)
	c.PhotoPrism.Password = os.Getenv("PHOTOPRISM_PASSWORD")

	c.Drive.CredentialsFile = envString("DRIVE_CREDENTIALS_FILE", c.Drive.CredentialsFile)
	c.Drive.TokenFile = envString("DRIVE_TOKEN_FILE", c.Drive.TokenFile)
	c.Dir.Root = envString("FINDER_DIR_ROOT", c.Dir.Root)

	c.Embedding.URL = envString("EMBEDDING_URL", c.Embedding.URL)
	c.Face.Backend = envString("FACE_BACKEND", c.Face.Backend)
	c.Face.ModelsDir = envString("DLIB_MODELS_DIR", c.Face.ModelsDir)

	c.Scan.Source = envString("FINDER_SOURCE", c.Scan.Source)
	if s := os.Getenv("FINDER_DETECTION_MODEL"); s != "" {
		m, err := facematch.ParseDetectionModel(s)
		if err != nil {
			return fmt.Errorf("FINDER_DETECTION_MODEL: %w", err)
		}
		c.Scan.Model = m
	}
	if s := os.Getenv("FINDER_TOLERANCE"); s != "" {
		tol, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("FINDER_TOLERANCE: %w", err)
		}
		c.Scan.Tolerance = tol
	}
	c.Scan.Concurrency = envInt("FINDER_CONCURRENCY", c.Scan.Concurrency)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	if s := os.Getenv("WEB_ALLOWED_ORIGINS"); s != "" {
		c.Web.AllowedOrigins = nil
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Web.AllowedOrigins = append(c.Web.AllowedOrigins, o)
			}
		}
	}

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	if s := os.Getenv("LOG_JSON"); s != "" {
		c.Log.JSON, _ = strconv.ParseBool(s)
	}
	return nil
}

// Tolerance returns the configured match tolerance.
func (c *Config) Tolerance() facematch.Tolerance {
	return facematch.Tolerance(c.Scan.Tolerance)
}

// Validate checks values that cannot be checked while parsing.
func (c *Config) Validate() error {
	if err := c.Tolerance().Validate(); err != nil {
		return err
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Scan.Concurrency)
	}
	switch c.Face.Backend {
	case "http", "dlib":
	default:
		return fmt.Errorf("unknown face backend %q", c.Face.Backend)
	}
	return nil
}
