package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCommand mirrors the teacher's cobra/viper root-command wiring
// (cmd/root.go): persistent flags bound into viper and one runnable
// subcommand.
func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "vaserver",
		Short: "Virtual Acoustics auralization core",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "va.ini", "path to the INI config file")
	if err := viper.BindPFlag("config", root.PersistentFlags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("vaserver: binding --config flag: %v", err))
	}

	root.AddCommand(serveCommand(&configPath))
	return root
}
