package config

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/tournevent/carrierhub/pkg/shipper"
)

// Defaults is the layout of the carrier defaults file:
//
//	defaults:
//	  label_format: pdf
//	  send_timeout: 20s
//	  sender_name: Warehouse
type Defaults struct {
	Values map[string]string `mapstructure:"defaults"`
}

// LoadDefaults reads the global carrier configuration defaults. An empty path
// yields an empty configuration.
func LoadDefaults(path string) (shipper.Configuration, error) {
	if path == "" {
		return shipper.Configuration{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read carrier defaults %s: %w", path, err)
	}

	var d Defaults
	if err := v.Unmarshal(&d); err != nil {
		return nil, fmt.Errorf("decode carrier defaults %s: %w", path, err)
	}

	cfg := make(shipper.Configuration, len(d.Values))
	for k, val := range d.Values {
		cfg[k] = val
	}
	return cfg, nil
}
