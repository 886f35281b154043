package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"surrogate/pkg/errorest"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Estimator    EstimatorConfig    `yaml:"estimator"`
	Approximator ApproximatorConfig `yaml:"approximator"`
	Surrogate    SurrogateConfig    `yaml:"surrogate"`
	Log          LogConfig          `yaml:"log"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`     // HTTP Listen Address (e.g. :8080)
	TCPAddr string `yaml:"tcp_addr"` // TCP Listen Address (e.g. :9090), empty disables
}

type StorageConfig struct {
	Path    string `yaml:"path"`
	DBFile  string `yaml:"db_file"`  // calibration archive, relative to Path
	WALFile string `yaml:"wal_file"` // evaluation log, relative to Path
}

type EstimatorConfig struct {
	Method        string  `yaml:"method"`
	Precision     float64 `yaml:"precision"`
	MinSamples    int     `yaml:"min_samples"`
	PosteriorFile string  `yaml:"posterior_file"`
}

type ApproximatorConfig struct {
	Neighbors     int     `yaml:"neighbors"`
	GPLengthScale float64 `yaml:"gp_length_scale"`
	GPNugget      float64 `yaml:"gp_nugget"`
}

type SurrogateConfig struct {
	RetrainEvery int `yaml:"retrain_every"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			TCPAddr: ":9090",
		},
		Storage: StorageConfig{
			Path:    "surrogate_data",
			DBFile:  "calibrations.db",
			WALFile: "evaluations.wal",
		},
		Estimator: EstimatorConfig{
			Method:        errorest.MinDistance.String(),
			Precision:     0.1,
			MinSamples:    errorest.DefaultMinSamples,
			PosteriorFile: errorest.DefaultPosteriorFile,
		},
		Approximator: ApproximatorConfig{
			Neighbors: 10,
		},
		Surrogate: SurrogateConfig{
			RetrainEvery: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/surrogate.yaml", "surrogate.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// ParseMethod maps the estimator.method setting to an ErrorMethod.
func (c *Config) ParseMethod() (errorest.ErrorMethod, error) {
	return errorest.ParseMethod(c.Estimator.Method)
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = d.Storage.Path
	}
	if cfg.Storage.DBFile == "" {
		cfg.Storage.DBFile = d.Storage.DBFile
	}
	if cfg.Storage.WALFile == "" {
		cfg.Storage.WALFile = d.Storage.WALFile
	}
	if cfg.Estimator.Method == "" {
		cfg.Estimator.Method = d.Estimator.Method
	}
	if cfg.Estimator.Precision <= 0 {
		cfg.Estimator.Precision = d.Estimator.Precision
	}
	if cfg.Estimator.MinSamples <= 0 {
		cfg.Estimator.MinSamples = d.Estimator.MinSamples
	}
	if cfg.Approximator.Neighbors <= 0 {
		cfg.Approximator.Neighbors = d.Approximator.Neighbors
	}
	if cfg.Approximator.GPLengthScale < 0 {
		cfg.Approximator.GPLengthScale = 0
	}
	if cfg.Approximator.GPNugget < 0 {
		cfg.Approximator.GPNugget = 0
	}
	if cfg.Surrogate.RetrainEvery <= 0 {
		cfg.Surrogate.RetrainEvery = d.Surrogate.RetrainEvery
	}
}
