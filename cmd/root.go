// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ugurkocde/IntuneAutomation-sub001/client"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/rest"
	"github.com/ugurkocde/IntuneAutomation-sub001/config"
)

var (
	configPath string
	jsonLogs   bool
	verbosity  int

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "intune-groupsync",
	Short:             "Synchronize Entra ID group membership from Intune device criteria",
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "emit JSON logs")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbosity", "v", "increase log verbosity (-v, -vv)")
}

// Execute runs the command tree. Exit codes: 2 for setup/usage failures,
// 1 when a run completed with unresolved devices or failed batches.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

func initialize(cmd *cobra.Command, args []string) error {
	// A local .env file carries credentials in dev setups; absence is fine.
	_ = godotenv.Load()

	var err error
	if cfg, err = config.Load(configPath); err != nil {
		return err
	}
	setupLogging(cfg.Log.Level, jsonLogs || cfg.Log.JSON, verbosity)
	return nil
}

func setupLogging(level string, useJSON bool, verbosity int) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	switch {
	case verbosity >= 2:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case verbosity == 1:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		switch level {
		case "debug":
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		case "warn":
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		case "error":
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		default:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	}
}

// connectAndCreateClient builds a Graph client from configuration, choosing a
// static token when one was supplied and the client-credentials flow
// otherwise.
func connectAndCreateClient() client.GraphClient {
	if err := cfg.Validate(); err != nil {
		exit(err)
	}

	var tokens rest.TokenSource
	if cfg.Azure.JWT != "" {
		tokens = rest.StaticTokenSource{JWT: cfg.Azure.JWT}
	} else {
		tokens = &rest.ClientSecretTokenSource{
			Authority:    cfg.Azure.Authority,
			TenantID:     cfg.Azure.TenantId,
			ClientID:     cfg.Azure.ClientId,
			ClientSecret: cfg.Azure.ClientSecret,
			Scope:        cfg.Graph.Url + "/.default",
		}
	}

	graphClient, err := client.NewClient(client.Config{
		GraphUrl:   cfg.Graph.Url,
		Tokens:     tokens,
		MaxRetries: cfg.Graph.MaxRetries,
		PageDelay:  cfg.Graph.PageDelay.Get(),
	})
	if err != nil {
		exit(err)
	}
	return graphClient
}

func exit(err error) {
	log.Error().Err(err).Msg("fatal error")
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
