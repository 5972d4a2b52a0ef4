package usecase

import "go.uber.org/fx"

var Module = fx.Module("usecase",
	fx.Provide(NewTokenRefresher),
	fx.Provide(NewConnectionRotator),
	fx.Provide(NewConnectionUsecase),
)
