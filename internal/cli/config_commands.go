package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/webstorage/storectl/internal/config"
	"github.com/webstorage/storectl/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage storectl configuration",
		Long: `Configuration management commands for storectl.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for storectl.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "storectl Configuration Setup")
			fmt.Fprintln(out, "============================")
			fmt.Fprintln(out)

			cfg := config.NewConfig()
			p := newPrompter(cmd.InOrStdin(), out)

			answer, err := p.line(fmt.Sprintf("Server URL [%s]: ", cfg.ServerURL))
			if err != nil {
				return err
			}
			if answer != "" {
				cfg.ServerURL = answer
			}

			if answer, err = p.line(fmt.Sprintf("Download directory [%s]: ", cfg.DownloadDir)); err != nil {
				return err
			}
			if answer != "" {
				cfg.DownloadDir = answer
			}

			if answer, err = p.line("Proxy mode (no-proxy, system, basic, ntlm) [no-proxy]: "); err != nil {
				return err
			}
			if answer != "" {
				cfg.ProxyMode = answer
			}
			if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
				if cfg.ProxyHost, err = p.required("Proxy host: "); err != nil {
					return err
				}
				if answer, err = p.line(fmt.Sprintf("Proxy port [%d]: ", cfg.ProxyPort)); err != nil {
					return err
				}
				if answer != "" {
					port, perr := strconv.Atoi(answer)
					if perr != nil {
						return fmt.Errorf("invalid proxy port %q", answer)
					}
					cfg.ProxyPort = port
				}
				if cfg.ProxyUser, err = p.line("Proxy user (blank for none): "); err != nil {
					return err
				}
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to %s\n", path)
			fmt.Fprintf(out, "Next: %s login\n", constants.AppName)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

Priority: --url flag > ` + config.EnvServerURL + ` > configuration file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Server URL:         %s\n", cfg.ServerURL)
			fmt.Fprintf(out, "Session store:      %s\n", cfg.SessionStorePath)
			fmt.Fprintf(out, "Download directory: %s\n", cfg.DownloadDir)
			fmt.Fprintf(out, "Retry max:          %d\n", cfg.RetryMax)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
			}
			if cfg.ProxyPassword != "" {
				// Never display any portion of the password
				fmt.Fprintln(out, "  Proxy Password: <set>")
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  Debug:    %t\n", cfg.Debug)
			if cfg.LogFile != "" {
				fmt.Fprintf(out, "  Log file: %s\n", cfg.LogFile)
			}
			fmt.Fprintln(out)

			path := configPath()
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			fmt.Fprintf(out, "%s\n", path)
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(out, "Status: file does not exist (create it with: %s config init)\n", constants.AppName)
				return nil
			}
			fmt.Fprintln(out, "Status: ✓ File exists")
			return nil
		},
	}
}
