package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// ErrInvalidConfig is returned when a YAML config file is well-formed but
// semantically unusable.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultRareTol is the frequency below which a category is grouped as rare.
const DefaultRareTol = 0.05

// ProcessConfig mirrors config/process/process.yaml.
type ProcessConfig struct {
	Encoding EncodingConfig `yaml:"encoding"`
}

// EncodingConfig lists the variables each preprocessing stage touches.
type EncodingConfig struct {
	RareEnc            []string `yaml:"rare_enc"`
	RareEncNCategories int      `yaml:"rare_enc_n_categories"`
	RareEncTol         float64  `yaml:"rare_enc_tol,omitempty"`
	OneHotEnc          []string `yaml:"onehot_enc"`
	MinMaxScaler       []string `yaml:"minmax_scaler"`
}

// Validate rejects configs whose stages would collide or are empty.
func (e *EncodingConfig) Validate() error {
	if len(e.OneHotEnc) == 0 {
		return errors.Wrap(ErrInvalidConfig, "onehot_enc must list at least one variable")
	}
	if len(e.MinMaxScaler) == 0 {
		return errors.Wrap(ErrInvalidConfig, "minmax_scaler must list at least one variable")
	}
	if len(e.RareEnc) > 0 && e.RareEncNCategories < 1 {
		return errors.Wrap(ErrInvalidConfig, "rare_enc_n_categories must be >= 1")
	}
	if e.RareEncTol < 0 || e.RareEncTol >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "rare_enc_tol must be in [0, 1), got %g", e.RareEncTol)
	}
	onehot := make(map[string]bool, len(e.OneHotEnc))
	for _, v := range e.OneHotEnc {
		onehot[v] = true
	}
	for _, v := range e.MinMaxScaler {
		if onehot[v] {
			return errors.Wrapf(ErrInvalidConfig, "variable %q cannot be both one-hot encoded and scaled", v)
		}
	}
	return nil
}

// LoadProcessConfig reads and validates the preprocessing config.
func LoadProcessConfig(path string) (*ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read process config %s", path)
	}
	var cfg ProcessConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse process config %s", path)
	}
	if cfg.Encoding.RareEncTol == 0 {
		cfg.Encoding.RareEncTol = DefaultRareTol
	}
	if err := cfg.Encoding.Validate(); err != nil {
		return nil, errors.Wrapf(err, "process config %s", path)
	}
	return &cfg, nil
}

// ModelConfig mirrors config/model/model.yaml.
type ModelConfig struct {
	Params models.BoostingParams `yaml:"params"`
}

// LoadModelConfig reads and validates the tuned final-model parameters.
func LoadModelConfig(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read model config %s", path)
	}
	var cfg ModelConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse model config %s", path)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "model config %s: %v", path, err)
	}
	return &cfg, nil
}

// SaveModelConfig overwrites path with params under a top-level params key.
func SaveModelConfig(path string, params models.BoostingParams) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create model config directory")
	}
	data, err := yaml.Marshal(ModelConfig{Params: params})
	if err != nil {
		return errors.Wrap(err, "encode model config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write model config %s", path)
	}
	return nil
}
