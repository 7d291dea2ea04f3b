package auth

import (
	"github.com/agrovista/agrigate/internal/auth/repository"
	"github.com/agrovista/agrigate/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
