package main

import (
	"fmt"
	"os"

	"github.com/function61/gokit/dynversion"
	"github.com/komero-io/komero/pkg/komclient"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Control panel for your Komero home server",
		Version: dynversion.Version,
	}

	for _, entrypoint := range komclient.Entrypoints() {
		rootCmd.AddCommand(entrypoint)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
