// Package cli wires the smpeer commands: a rendezvous server and peers
// that run secret comparisons against each other.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smpeer/smpeer/internal/rendezvous"
)

var (
	flagHost   string
	flagPort   int
	flagPath   string
	flagSecure bool
	flagDebug  int
)

var rootCmd = &cobra.Command{
	Use:   "smpeer",
	Short: "Compare secrets with a remote peer without revealing them",
	Long: `smpeer runs a privacy-preserving equality comparison between two peers.
Peers find each other through a rendezvous server and exchange the
handshake over a direct data channel.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "localhost", "rendezvous server host")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 9000, "rendezvous server port")
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "/", "rendezvous namespace path")
	rootCmd.PersistentFlags().BoolVar(&flagSecure, "secure", false, "use TLS for the rendezvous connection")
	rootCmd.PersistentFlags().IntVar(&flagDebug, "debug", 2, "log verbosity (0=silent, 1=errors, 2=warnings, 3=all)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listenCmd)
}

func configFromFlags() rendezvous.Config {
	return rendezvous.Config{
		Host:   flagHost,
		Port:   flagPort,
		Path:   flagPath,
		Secure: flagSecure,
		Debug:  flagDebug,
	}
}
