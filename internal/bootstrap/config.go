package bootstrap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/config"
)

// validateConfiguration validates the process settings
func validateConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CheckConfig validates the process settings and the policy file without
// opening any connection.
func CheckConfig(cfg *config.Config) (*config.Policy, error) {
	if err := validateConfiguration(cfg); err != nil {
		return nil, err
	}
	p, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("invalid directory policy: %w", err)
	}
	return p, nil
}

// loadPolicy returns the policy source. When watching is enabled the
// caller must run the returned watcher.
func loadPolicy(
	cfg *config.Config,
	logger logrus.FieldLogger,
) (config.PolicySource, *config.PolicyWatcher, error) {
	if cfg.PolicyWatch {
		w, err := config.NewPolicyWatcher(cfg.PolicyFile, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid directory policy: %w", err)
		}
		logger.WithField("file", cfg.PolicyFile).Info("Directory policy loaded (watching for changes)")
		return w, w, nil
	}

	p, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid directory policy: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"file":    cfg.PolicyFile,
		"domains": len(p.DomainServers),
	}).Info("Directory policy loaded")
	return config.NewStaticPolicy(p), nil, nil
}
