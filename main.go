package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/internal/database"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/server"
	"github.com/customeros/mailsync/services"
)

func main() {
	app := &cli.App{
		Name:  "mailsync",
		Usage: "incremental Gmail mailbox synchronizer",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: runServer,
			},
			{
				Name:  "sync",
				Usage: "Run one synchronization of an account in the foreground",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Usage: "email account id", Required: true},
					&cli.BoolFlag{Name: "full", Usage: "ignore the history cursor and rescan the mailbox"},
				},
				Action: syncAccount,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, errors.Wrap(err, "config initialization failed")
	}
	if cfg == nil {
		return nil, errors.New("config is empty")
	}
	return cfg, nil
}

func migrate(_ *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mailsyncDB, err := database.InitMailsyncDatabase(cfg.MailsyncDatabaseConfig)
	if err != nil {
		return errors.Wrap(err, "mailsync database initialization failed")
	}

	if err := repository.MigrateMailsyncDB(cfg.MailsyncDatabaseConfig, mailsyncDB); err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	log.Println("Database migration completed successfully")
	return nil
}

func runServer(_ *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mailsyncDB, err := database.InitMailsyncDatabase(cfg.MailsyncDatabaseConfig)
	if err != nil {
		return errors.Wrap(err, "mailsync database initialization failed")
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Mailsync starting up...")

	srv, err := server.NewServer(cfg, mailsyncDB)
	if err != nil {
		return errors.Wrap(err, "server setup failed")
	}

	if err := srv.Run(); err != nil {
		return errors.Wrap(err, "server startup failed")
	}

	log.Println("Shutdown complete")
	return nil
}

func syncAccount(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// the foreground pass never publishes
	cfg.AppConfig.RabbitMQURL = ""

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	defer appLogger.Sync()

	mailsyncDB, err := database.InitMailsyncDatabase(cfg.MailsyncDatabaseConfig)
	if err != nil {
		return errors.Wrap(err, "mailsync database initialization failed")
	}
	repos := repository.InitRepositories(mailsyncDB)

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return err
	}
	defer svcs.Close()

	accountID := c.String("account")
	ctx := utils.SetAppSourceInContext(context.Background(), "mailsync-cli")
	result, err := svcs.Tasks.RunSync(ctx, accountID, c.Bool("full"))
	if err != nil {
		return errors.Wrapf(err, "sync of %s failed", accountID)
	}

	fmt.Printf("account %s: full scan %t, %d created, %d updated, %d deleted, %d skipped\n",
		accountID, result.FullScan, result.Created, result.Updated, result.Deleted, result.Skipped)
	return nil
}
