package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := registryPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := registryPath()
		if err != nil {
			return err
		}
		if err := config.CreateDefaultConfig(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List saved connection profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if len(reg.Profiles) == 0 {
			fmt.Println("No profiles saved. Use 'wsproto connect <url> --save-profile NAME'.")
			return nil
		}
		names := make([]string, 0, len(reg.Profiles))
		for name := range reg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := reg.Profiles[name]
			marker := " "
			if name == reg.Preferences.DefaultProfile {
				marker = "*"
			}
			line := fmt.Sprintf("%s %-16s %s", marker, name, p.URL)
			if len(p.Subprotocols) > 0 {
				line += " [" + strings.Join(p.Subprotocols, ",") + "]"
			}
			if !p.LastUsed.IsZero() {
				line += "  last used " + p.LastUsed.Format("2006-01-02 15:04")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if !reg.DeleteProfile(args[0]) {
			return fmt.Errorf("no profile named %q", args[0])
		}
		return saveRegistry(reg)
	},
}

var configDefaultCmd = &cobra.Command{
	Use:   "default NAME",
	Short: "Set the profile used when connect is run without a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if reg.GetProfile(args[0]) == nil {
			return fmt.Errorf("no profile named %q", args[0])
		}
		reg.Preferences.DefaultProfile = args[0]
		return saveRegistry(reg)
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configInitCmd, configProfilesCmd, configDeleteCmd, configDefaultCmd)
}

func registryPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadRegistry()
}

func saveRegistry(reg *config.Registry) error {
	path, err := registryPath()
	if err != nil {
		return err
	}
	return reg.SaveFile(path)
}
