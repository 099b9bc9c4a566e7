package bootstrap

import (
	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/auth"
	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/core"
	"github.com/go-authgate/exchauth/internal/ews"
	"github.com/go-authgate/exchauth/internal/metrics"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/services"
	"github.com/go-authgate/exchauth/internal/store"
)

// initializeServices creates all business logic services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	policies config.PolicySource,
	directory *ews.Client,
	auditService *services.AuditService,
	recorder core.Recorder,
	userCache core.Cache[models.User],
	countCache core.Cache[int64],
	logger logrus.FieldLogger,
) (*services.OrganizationService, *services.UserService, *metrics.CacheWrapper) {
	authenticator := auth.NewAuthenticator(directory, cfg.DirectoryTimeout, recorder, logger)

	var orgService *services.OrganizationService
	var hook core.ProvisionHook
	if cfg.OrganizationAutoAssociate {
		orgService = services.NewOrganizationService(db, logger)
		hook = orgService
	}

	userService := services.NewUserService(
		db,
		policies,
		authenticator,
		hook,
		auditService,
		recorder,
		logger,
		userCache,
		cfg.UserCacheTTL,
	)
	userService.SetProvisionHookTimeout(cfg.ProvisionHookTimeout)
	userCounts := metrics.NewCacheWrapper(db, countCache, recorder)

	return orgService, userService, userCounts
}
