package identity

import "go.uber.org/fx"

// Module wires the identity provider integration.
var Module = fx.Module("identity",
	fx.Provide(NewKeyset),
	fx.Provide(NewValidator),
	fx.Provide(NewClient),
)
