package main

import (
	"fmt"
	"log"
	"os"

	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/util"
	"github.com/spf13/cobra"
)

var (
	conf     *util.AppConfig
	apiURL   string
	apiToken string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     util.Name,
	Version: util.GetVersion(),
	Short:   "Terminal and web front end for a federated event calendar",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		conf, err = util.ReadConf()
		if err != nil {
			return err
		}
		if apiURL != "" {
			if conf.Conf.ApiUrl, err = util.NormalizeApiUrl(apiURL); err != nil {
				return err
			}
		}
		if apiToken != "" {
			conf.Conf.ApiToken = apiToken
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "u", "", "events API endpoint to connect to")
	rootCmd.PersistentFlags().StringVarP(&apiToken, "token", "t", "", "API token to authenticate with")

	rootCmd.AddCommand(serveCmd, tuiCmd, resolveCmd, discoverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(extra ...api.Option) (*api.Client, error) {
	options := []api.Option{
		api.WithURI(conf.Conf.ApiUrl),
		api.WithUserAgent(util.UserAgent()),
	}
	client, err := api.NewClient(append(options, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("error creating client: %w", err)
	}
	return client, nil
}

// session logs in with the configured token, or stays anonymous.
func session(cmd *cobra.Command, client *api.Client) (*federation.Session, error) {
	if conf.Conf.ApiToken == "" {
		return federation.Anonymous(), nil
	}
	s, err := federation.Login(cmd.Context(), client, conf.Conf.ApiToken)
	if err != nil {
		return nil, fmt.Errorf("error logging in with token %s: %w", util.MaskToken(conf.Conf.ApiToken), err)
	}
	log.Printf("Logged in as %s", s.Viewer.Username)
	return s, nil
}
