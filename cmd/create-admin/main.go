// Command create-admin registers a staff account that can sign in to the
// admin API. Public registration only ever creates ordinary users.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/service"
	"github.com/garyjia/reimbursement-tracker/internal/config"
	"github.com/garyjia/reimbursement-tracker/internal/container"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	username := flag.String("username", "", "login name (required)")
	password := flag.String("password", "", "password, at least 6 characters (required)")
	email := flag.String("email", "", "email address")
	realName := flag.String("real-name", "", "display name")
	superuser := flag.Bool("superuser", false, "grant user management rights")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "warn", OutputPath: "stderr", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	containerCfg := cfg.ToContainerConfig()
	containerCfg.Storage.SweepInterval = 0

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer c.Close()

	user, err := c.Services().Auth.CreateAdmin(ctx, service.RegisterInput{
		Username: *username,
		Password: *password,
		Email:    *email,
		RealName: *realName,
	}, *superuser)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Failed to create admin: %v\n", err)
		}
		c.Close()
		os.Exit(1)
	}

	fmt.Printf("Created admin %q (id %d, superuser=%t)\n", user.Username, user.ID, user.IsSuperuser)
}
