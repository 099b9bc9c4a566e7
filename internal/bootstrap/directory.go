package bootstrap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/ews"
)

// initializeDirectoryClient creates the Exchange client
func initializeDirectoryClient(cfg *config.Config, logger logrus.FieldLogger) (*ews.Client, error) {
	client, err := ews.NewClient(
		ews.WithTimeout(cfg.DirectoryTimeout),
		ews.WithInsecureSkipVerify(cfg.EWSInsecureSkipVerify),
		ews.WithAutodiscoverScheme(cfg.EWSAutodiscoverScheme),
		ews.WithServerVersion(cfg.EWSRequestServerVersion),
		ews.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory client: %w", err)
	}
	if cfg.EWSInsecureSkipVerify {
		logger.Warn("TLS verification disabled for Exchange endpoints")
	}
	return client, nil
}
