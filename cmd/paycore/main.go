package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/clinicdesk/paycore/app/controllers"
	"github.com/clinicdesk/paycore/internal/pkg/audit"
	"github.com/clinicdesk/paycore/internal/pkg/cache"
	"github.com/clinicdesk/paycore/internal/pkg/database"
	"github.com/clinicdesk/paycore/internal/pkg/env"
	"github.com/clinicdesk/paycore/internal/pkg/paycode"
	"github.com/clinicdesk/paycore/internal/pkg/payment"
	"github.com/clinicdesk/paycore/internal/pkg/router"
)

func main() {
	app := NewApplication()

	sweeper := audit.NewSweeper(database.GetDB())
	if err := sweeper.Start(); err != nil {
		log.Fatalf("failed to start stale charge sweeper: %v", err)
	}
	defer sweeper.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	controllers.SetPaymentService(payment.NewServiceFromDB(
		database.GetDB(),
		paycode.NewRedisStore(cache.GetClient()),
		payment.NewGatewayConfigFromEnv(),
	))

	app := fiber.New(fiber.Config{
		AppName: "paycore",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app)

	return app
}
