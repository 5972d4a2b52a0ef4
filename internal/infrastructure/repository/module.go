package repository

import (
	"go.uber.org/fx"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/repository"
	"crosspost-connect/internal/infrastructure/memstore"
	"crosspost-connect/internal/infrastructure/oauth2"
)

var Module = fx.Module("repository",
	fx.Provide(NewSocialConnectionRepository),
	fx.Provide(NewAPILogRepository),
	fx.Provide(provideAPILogSaver),
)

// provideAPILogSaver exposes the API log repository as the oauth2 audit sink
func provideAPILogSaver(repo repository.APILogRepository) oauth2.APILogSaver {
	return repo
}

// StateModule provides the OAuth state store for the configured backend.
// Only the selected backend's dependencies are constructed.
func StateModule(backend string) fx.Option {
	switch backend {
	case config.StateBackendRedis:
		return fx.Module("oauth_state", fx.Provide(NewRedisOAuthStateRepository))
	case config.StateBackendMemory:
		return fx.Module("oauth_state", fx.Provide(memstore.NewOAuthStateStore))
	default:
		return fx.Module("oauth_state", fx.Provide(NewOAuthStateRepository))
	}
}
