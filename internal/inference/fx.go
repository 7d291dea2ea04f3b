package inference

import "go.uber.org/fx"

// Module wires the inference microservice client.
var Module = fx.Module("inference",
	fx.Provide(NewClient),
)
