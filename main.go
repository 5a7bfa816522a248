package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/sendframe/sendframe/config"
	"github.com/sendframe/sendframe/internal/database"
	"github.com/sendframe/sendframe/internal/logger"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/server"
	"github.com/sendframe/sendframe/services"
)

func main() {
	app := &cli.App{
		Name:  "sendframe",
		Usage: "batch email transmission and reconciliation engine",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "run database migrations",
				Action: func(c *cli.Context) error {
					_, db := setup()
					if err := repository.MigrateDB(db); err != nil {
						log.Fatalf("Database migration failed: %v", err)
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "start the application server",
				Action: func(c *cli.Context) error {
					cfg, db := setup()

					log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
					log.Println("Sendframe starting up...")

					srv, err := server.NewServer(cfg, db)
					if err != nil {
						log.Fatalf("Server setup failed: %v", err)
					}

					if err := srv.Run(); err != nil {
						log.Fatalf("Server startup failed: %v", err)
					}

					log.Println("Shutdown complete")
					return nil
				},
			},
			{
				Name:  "sweep-bounces",
				Usage: "run a one-shot bounce sweep across all senders and exit",
				Action: func(c *cli.Context) error {
					cfg, db := setup()

					appLogger := logger.NewAppLogger(cfg.Logger)
					appLogger.InitLogger()

					repos := repository.InitRepositories(db)
					svcs, err := services.InitServices(cfg, appLogger, repos)
					if err != nil {
						log.Fatalf("Service initialization failed: %v", err)
					}

					if err := svcs.BounceService.SweepAllSenders(c.Context); err != nil {
						log.Fatalf("Bounce sweep failed: %v", err)
					}
					log.Println("Bounce sweep completed successfully")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB) {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}
	if cfg == nil {
		log.Fatalf("config is empty")
	}

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}

	return cfg, db
}
