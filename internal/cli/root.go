package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "deployfi",
		Short: "Cross-chain token and lending pool deployment",
		Long: `deployfi deploys tokens and lending pools through versioned factories
on several EVM chains, confirms them and recovers the created address.

Every state-changing operation is shown for confirmation before it is
signed. Submitted transactions are never resubmitted automatically.`,
		SilenceUsage: true,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deployfi/config.yaml)")
	rootCmd.PersistentFlags().String("chain", "sepolia", "Chain to use (name or chain id)")
	rootCmd.PersistentFlags().String("networks-file", "", "YAML file overriding or extending the network registry")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	_ = viper.BindPFlag("chain", rootCmd.PersistentFlags().Lookup("chain"))
	_ = viper.BindPFlag("networks_file", rootCmd.PersistentFlags().Lookup("networks-file"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	viper.SetDefault("fee.fallback", "default")
	viper.SetDefault("confirm.timeout", 2*time.Minute)
	viper.SetDefault("confirm.interval", 2*time.Second)
	viper.SetDefault("log_level", "info")
}

func initConfig() {
	// .env is optional.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".deployfi")
		if err := os.MkdirAll(configDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("DEPLOYFI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()

	level := logging.ParseLevel(viper.GetString("log_level"))
	if viper.GetBool("debug") {
		level = logging.ParseLevel("debug")
	}
	logging.Initialize(level)
}

func getDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deployfi"
	}
	return filepath.Join(home, ".deployfi")
}

// loadRegistry builds the immutable registry from the defaults and the
// optional overlay file.
func loadRegistry() (*chain.Registry, error) {
	profiles := chain.DefaultProfiles()
	if path := viper.GetString("networks_file"); path != "" {
		var err error
		profiles, err = chain.LoadOverlay(path, profiles)
		if err != nil {
			return nil, err
		}
	}
	return chain.NewRegistry(profiles)
}

// rpcOverrides reads rpc.<chainId> entries. A value may list several URLs
// separated by commas.
func rpcOverrides() (map[uint64][]string, error) {
	out := make(map[uint64][]string)
	for key, value := range viper.GetStringMapString("rpc") {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rpc.%s: chain id must be numeric", key)
		}
		var urls []string
		for _, u := range strings.Split(value, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		out[id] = urls
	}
	return out, nil
}

// env bundles what every chain-facing command needs.
type env struct {
	registry *chain.Registry
	client   *chain.Client
	profile  *chain.NetworkProfile
}

func newEnv() (*env, error) {
	registry, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	overrides, err := rpcOverrides()
	if err != nil {
		return nil, err
	}
	profile, err := registry.Lookup(viper.GetString("chain"))
	if err != nil {
		return nil, err
	}
	return &env{
		registry: registry,
		client:   chain.NewClient(registry, overrides),
		profile:  profile,
	}, nil
}

func (e *env) Close() {
	e.client.Close()
}
