package cmd

import (
	"github.com/spf13/cobra"

	"github.com/longhang2004/content-service/internal/config"
	"github.com/longhang2004/content-service/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd())
}

func serveCmd() *cobra.Command {
	var port string

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the content service",
		Run: func(cmd *cobra.Command, args []string) {
			cnf := config.LoadConfig()
			if port != "" {
				cnf.HTTPPort = port
			}

			server.NewServer(cnf).Start()
		},
	}

	command.Flags().StringVarP(&port, "port", "p", "", "http port (overrides HTTP_PORT)")

	return command
}
