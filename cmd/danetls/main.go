package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/HeinleinSupport/danetls"
)

const usageExitCode = 3

var (
	flagDebug      bool
	flagMode       string
	flagCAFile     string
	flagApp        string
	flagService    string
	flagResolvConf string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "danetls [flags] <hostname> <port>",
		Short: "DANE TLS server authentication diagnostic",
		Long: "danetls connects to every resolved address of a TLS server and\n" +
			"authenticates it with DANE, falling back to PKIX when no secure\n" +
			"TLSA records exist.",
		Version:       danetls.Version.String(),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "debug output")
	cmd.Flags().StringVarP(&flagMode, "mode", "m", "", "authentication mode: dane or pkix (default: dane with pkix fallback)")
	cmd.Flags().StringVarP(&flagCAFile, "cafile", "c", "", "alternate PEM trust store file")
	cmd.Flags().StringVarP(&flagApp, "starttls", "s", "", "STARTTLS application: smtp, imap, pop3, xmpp-client, xmpp-server")
	cmd.Flags().StringVarP(&flagService, "name", "n", "", "STARTTLS service name, if different from hostname")
	cmd.Flags().StringVarP(&flagResolvConf, "resolv-conf", "r", "", "alternate resolv.conf file")
	return cmd
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagDebug {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func parseMode(s string) (danetls.Mode, error) {
	switch s {
	case "":
		return danetls.ModeBoth, nil
	case "dane":
		return danetls.ModeDANE, nil
	case "pkix":
		return danetls.ModePKIX, nil
	default:
		return danetls.ModeBoth, fmt.Errorf("unknown mode: %s", s)
	}
}

func run(cmd *cobra.Command, args []string) error {

	log := newLogger()

	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", args[1])
	}

	mode, err := parseMode(flagMode)
	if err != nil {
		return err
	}

	config := danetls.NewConfig(args[0], port)
	config.Mode = mode
	config.CAFile = flagCAFile
	config.Appname = flagApp
	config.Servicename = flagService

	resolver, err := danetls.GetResolver(flagResolvConf)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize DNS resolver")
		os.Exit(2)
	}

	lookup, err := danetls.LookupServer(resolver, config)
	if err != nil {
		log.Error().Err(err).Msg("DNS lookup failed")
		os.Exit(2)
	}

	if flagDebug && len(lookup.TLSA) > 0 {
		log.Debug().Int("count", len(lookup.TLSA)).Msg("TLSA records found")
		for _, tr := range lookup.TLSA {
			log.Debug().Msgf("TLSA: %s", tr)
		}
	}

	runner, err := danetls.NewRunner(config, log)
	if err != nil {
		log.Error().Err(err).Msg("initialization failed")
		os.Exit(2)
	}

	result, err := runner.Run(lookup)
	if err != nil {
		log.Error().Err(err).Msg("run aborted")
	}
	log.Info().Int("successes", result.Successes).Int("failures", result.Failures).
		Msgf("result: %s", result.Status)
	os.Exit(result.ExitCode())
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(usageExitCode)
	}
}
