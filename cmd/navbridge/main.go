package main

import (
	"os"

	"github.com/spf13/cobra"
)

var VERSION = "dev"

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "navbridge",
		Short:        "nav mesh scripting bridge",
		Version:      VERSION,
		SilenceUsage: true,
	}
	root.AddCommand(ServeCmd(), CompileCmd(), SchemaCmd())
	return root
}

func main() {
	if err := RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
