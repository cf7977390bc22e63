/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mpapenbr/itslogin/pkg/authservice"
	loginCmd "github.com/mpapenbr/itslogin/pkg/cmd/login"
	logoutCmd "github.com/mpapenbr/itslogin/pkg/cmd/logout"
	whoamiCmd "github.com/mpapenbr/itslogin/pkg/cmd/whoami"
	"github.com/mpapenbr/itslogin/pkg/config"
	"github.com/mpapenbr/itslogin/pkg/session/impl/file"
	natsStore "github.com/mpapenbr/itslogin/pkg/session/impl/nats"
	"github.com/mpapenbr/itslogin/version"
)

const envPrefix = "ITS"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "itslogin",
	Short:   "Login client for the ITS teacher and student views",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.itslogin.yml)")

	rootCmd.PersistentFlags().StringVar(&config.AuthServiceURL, "auth-service-url",
		authservice.DefaultBaseURL,
		"Base URL of the auth service")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"",
		"Duration to wait for other services to be ready (empty: no check)")
	rootCmd.PersistentFlags().StringVar(&config.SessionStore, "session-store",
		string(file.StoreTypeFile),
		"Where the session is kept (memory, file, nats)")
	rootCmd.PersistentFlags().StringVar(&config.SessionDir, "session-dir",
		"",
		"Directory for the file session store (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&config.SessionKey, "session-key",
		"",
		"Key under which the authId is stored")
	rootCmd.PersistentFlags().StringVar(&config.SessionTTL, "session-ttl",
		"",
		"Lifetime of a stored session (nats only)")
	rootCmd.PersistentFlags().StringVar(&config.NATSURL, "nats-url",
		"nats://localhost:4222",
		"URL of the NATS server")
	rootCmd.PersistentFlags().StringVar(&config.NATSBucket, "nats-bucket",
		natsStore.DefaultBucket,
		"KV bucket holding the sessions")

	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"warn",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules to restrict log output (e.g. \"*:login,oidc\")")
	rootCmd.PersistentFlags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	rootCmd.PersistentFlags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	rootCmd.PersistentFlags().BoolVar(&config.TelemetryStdout,
		"telemetry-stdout",
		false,
		"writes telemetry data to stdout instead of the endpoint")

	// add commands here
	rootCmd.AddCommand(loginCmd.NewLoginCmd())
	rootCmd.AddCommand(whoamiCmd.NewWhoamiCmd())
	rootCmd.AddCommand(logoutCmd.NewLogoutCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".itslogin" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".itslogin")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --session-store to ITS_SESSION_STORE
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
