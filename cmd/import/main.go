// Command leads-import prepares a leads backend and loads exported rows
// into it, for local mirrors and demos.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:           "leads-import",
		Short:         "Prepare and seed the leads table behind the dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("LEADS_CONFIG"), "path to config file")
	root.AddCommand(newSchemaCmd(), newLoadCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
