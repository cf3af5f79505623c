package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pulsectl",
	Short: "Pulsectl is a command line tool for the pulsewatch scan engine",
	Long: `pulsectl drives the pulsewatch scan engine over its HTTP API.

A scan fetches recent activity for a user (and optionally a set of
competitors) from the configured platforms, scores engagement, and
computes peak posting windows. Scans run asynchronously: start one,
then poll or watch it until it reaches a terminal status.

Common workflows:

  Start a scan:
    pulsectl scan start --user creator-1 --competitors rival-a,rival-b

  Check scan status:
    pulsectl scan status <scan-id>

  Poll until the scan finishes:
    pulsectl scan watch <scan-id>

  Drop cached fetches for a user after they post:
    pulsectl cache invalidate tiktok creator-1

Configuration:
  PULSEWATCH_URL    API endpoint (default: http://localhost:8080)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	viper.SetEnvPrefix("PULSEWATCH")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "Pulsewatch API URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
