package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/babarot/stowage/internal/env"
	"github.com/go-playground/validator/v10"
	"github.com/muesli/reflow/indent"
	"gopkg.in/yaml.v2"
)

var validate *validator.Validate

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Trash   TrashConfig   `yaml:"trash"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	// DataDir holds the index; empty means $STOWAGE_DATA_DIR
	DataDir string `yaml:"data_dir" validate:"omitempty,dirpath_portable"`
	// Root holds the live tree; empty means <data_dir>/files
	Root string `yaml:"root" validate:"omitempty,dirpath_portable"`
	// TrashDir holds quarantined payloads; empty means <data_dir>/trash
	TrashDir         string `yaml:"trash_dir" validate:"omitempty,dirpath_portable"`
	MaxUploadSize    string `yaml:"max_upload_size" validate:"validSize"`
	AllowCrossDevice bool   `yaml:"allow_cross_device"`
}

type IndexConfig struct {
	Backend string `yaml:"backend" validate:"required,oneof=badger json"`
}

type TrashConfig struct {
	Retention        string        `yaml:"retention" validate:"validDuration"`
	CleanupInterval  string        `yaml:"cleanup_interval" validate:"required,validDuration,minDuration=1h"`
	RestoreConflict  string        `yaml:"restore_conflict" validate:"required,oneof=rename fail"`
	ReconcileOnStart bool          `yaml:"reconcile_on_start"`
	Exclude          ExcludeConfig `yaml:"exclude"`
}

// ExcludeConfig hides entries from the CLI trash listing
type ExcludeConfig struct {
	Names    []string   `yaml:"names"`
	Patterns []string   `yaml:"patterns"`
	Globs    []string   `yaml:"globs"`
	Size     SizeConfig `yaml:"size"`
}

type SizeConfig struct {
	Min string `yaml:"min" validate:"validSize"`
	Max string `yaml:"max" validate:"validSize"`
}

type ServerConfig struct {
	Addr              string   `yaml:"addr" validate:"required,hostname_port"`
	CORSOrigins       []string `yaml:"cors_origins"`
	ShutdownTimeout   string   `yaml:"shutdown_timeout" validate:"required,validDuration"`
	ReadHeaderTimeout string   `yaml:"read_header_timeout" validate:"required,validDuration"`
}

type LoggingConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Level    string         `yaml:"level" validate:"required,oneof=debug info warn error"`
	Format   string         `yaml:"format" validate:"required,oneof=text json"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize  string `yaml:"max_size" validate:"validSize"`
	MaxFiles int    `yaml:"max_files" validate:"gte=0"`
}

type configError struct {
	configPath string
	configDir  string
	parser     parser
	err        error
}

type parser struct{}

func (p parser) getDefaultConfigContents() string {
	content, _ := yaml.Marshal(Default())
	return string(content)
}

func (e configError) Error() string {
	return heredoc.Docf(`
		Couldn't find the "%s" config file.
		Please try again after creating it or specifying a valid config path.
		The recommended config path is %s (default).
		Example YAML file contents:
		---
		%s
		---
		Original error:
		%s
		`,
		e.configPath,
		env.STOWAGE_CONFIG_PATH,
		e.parser.getDefaultConfigContents(),
		indent.String(e.err.Error(), 2),
	)
}

func (p parser) createConfigFile(path string) error {
	if err := p.ensureDirExists(filepath.Dir(path)); err != nil {
		return err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Warn("creating config file as it does not exist", "config-file", path)
		newConfigFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return err
		}
		defer newConfigFile.Close()

		if _, err := newConfigFile.WriteString(p.getDefaultConfigContents()); err != nil {
			return err
		}
	}
	return nil
}

func (p parser) ensureDirExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		slog.Warn("creating directory as it does not exist", "dir", dirPath)
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (p parser) ensureConfigFile() (string, error) {
	path := env.STOWAGE_CONFIG_PATH
	if err := p.createConfigFile(path); err != nil {
		return "", configError{
			configPath: path,
			configDir:  filepath.Dir(path),
			parser:     p,
			err:        err,
		}
	}
	return path, nil
}

type parsingError struct {
	err error
}

func (e parsingError) Error() string {
	return fmt.Sprintf("failed to parse config: %v", e.err)
}

func (e parsingError) Unwrap() error {
	return e.err
}

func (p parser) readConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configError{
			configPath: path,
			configDir:  filepath.Dir(path),
			parser:     p,
			err:        err,
		}
	}

	// unset keys keep their defaults
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, err
	}
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, err := range errs {
				return cfg, fmt.Errorf("validation error: field %s, %q is invalid (%s)", err.Namespace(), err.Value(), err.Tag())
			}
		}
		return cfg, err
	}
	return cfg, nil
}

func initParser() parser {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.Split(fld.Tag.Get("yaml"), ",")[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("validSize", validateSize)
	_ = validate.RegisterValidation("validDuration", validateDuration)
	_ = validate.RegisterValidation("minDuration", validateMinDuration)
	_ = validate.RegisterValidation("dirpath_portable", validateDirPath)

	return parser{}
}

// Parse reads the config at path. An empty path means $STOWAGE_CONFIG_PATH,
// which is created with the defaults when missing.
func Parse(path string) (Config, error) {
	parser := initParser()

	configPath := path
	if configPath == "" {
		var err error
		configPath, err = parser.ensureConfigFile()
		if err != nil {
			return Config{}, parsingError{err: err}
		}
	}
	slog.Debug("config file found", "config-file", configPath)

	cfg, err := parser.readConfigFile(configPath)
	if err != nil {
		return cfg, parsingError{err: err}
	}
	return cfg, nil
}
