package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"moul.io/zapfilter"
)

// WithFilter restricts output to entries matching the zapfilter rules,
// for example "debug:race.* info:*".
func WithFilter(rules string) (Option, error) {
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid log filter %q: %w", rules, err)
	}
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}), nil
}

// NewFromConfigFile builds a logger from a yaml encoded zap.Config.
// Keys that are missing in the file keep the production defaults.
func NewFromConfigFile(path string, opts ...Option) (*Logger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing log config %s: %w", path, err)
	}
	l, err := cfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return FromZap(l, cfg.Level), nil
}
