package main

import (
	"github.com/agrovista/agrigate/internal/config"
	"github.com/agrovista/agrigate/internal/logger"
	"github.com/agrovista/agrigate/internal/migration"
	"github.com/agrovista/agrigate/internal/server"
	"github.com/agrovista/agrigate/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
