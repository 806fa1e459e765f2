package main

import (
	"fmt"
	"net"
	"os"

	"github.com/de-tools/scorecard/pkg/runtime/app"
	"github.com/de-tools/scorecard/pkg/server"
	"github.com/de-tools/scorecard/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for the scorecard",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "scorecard.yaml",
		"Path to the scorecard configuration file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg, err := config.LoadConfig(ctx, cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize scorecard: %w", err)
	}
	defer func() {
		if err := application.Close(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to close scorecard")
		}
	}()

	logger.Info().Msgf("Configuration found at `%s` successfully loaded.", cfgPath)
	logger.Info().Msgf("Scorecard `%s` with %d KPIs, current period %s",
		application.Name(), application.Registry().Len(), application.Period())

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")

	if host == "" || port == "" {
		return fmt.Errorf("missing SERVER_HOST or SERVER_PORT in environment")
	}

	api := server.NewWebAPI(server.Config{
		Addr: net.JoinHostPort(host, port),
		Dependencies: server.Dependencies{
			Scorecard: application,
			Logger:    logger,
		},
	})

	return api.Start()
}
