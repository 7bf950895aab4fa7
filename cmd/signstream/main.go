// Command signstream streams camera frames to a sign recognition service and
// shows the recognised letters.
//
// Usage:
//
//	signstream stream --endpoint ws://localhost:5000   # camera -> service, viewer on :8080
//	signstream loopback --translation A                # local inference service on :5000
//	signstream probe --endpoint ws://localhost:5000    # one frame round trip
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-signstream/internal/config"
	"github.com/teslashibe/go-signstream/internal/log"
)

func main() {
	if err := newRootCommand(newCLI()).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by all subcommands.
type cli struct {
	v          *viper.Viper
	configFile string
}

func newCLI() *cli {
	return &cli{v: config.New()}
}

// bindFlags returns a PreRunE binding the running command's flags to config
// keys. Subcommands share keys such as endpoint on one viper, and viper keeps
// a single flag per key, so only the executing command may bind.
func (c *cli) bindFlags(bindings map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return config.BindFlags(c.v, cmd.Flags(), bindings)
	}
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "signstream",
		Short:        "Live fingerspelling recognition over a websocket",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(c.v, c.configFile); err != nil {
				return err
			}
			log.Init(c.v.GetString(config.KeyLogLevel))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default: search for signstream.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	cobra.CheckErr(config.BindFlags(c.v, pf, map[string]string{
		"log-level": config.KeyLogLevel,
	}))

	root.AddCommand(
		newStreamCommand(c),
		newLoopbackCommand(c),
		newProbeCommand(c),
	)
	return root
}
