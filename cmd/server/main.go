package main

import (
	"github.com/aeo-platform/aeo/backend/internal/bootstrap"
	"github.com/aeo-platform/aeo/backend/internal/server"
	"github.com/aeo-platform/aeo/backend/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger("server")

	server.Init()
}
