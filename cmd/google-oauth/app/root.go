// Copyright 2024 The AuthLayer Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/authlayer/google-oauth-go/pkg/googleoauth"
	"github.com/authlayer/google-oauth-go/pkg/log"
)

var (
	logType string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "google-oauth",
	Short: "Google OAuth2 token verifier",
	Long:  "google-oauth verifies Google-issued ID tokens and access tokens from the command line",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Logger.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logType, "log_type", "dev", "logger type to use (dev/prod)")
	rootCmd.PersistentFlags().StringSlice("client_id", nil, "trusted OAuth2 client id, repeatable; empty trusts any audience")
	rootCmd.PersistentFlags().Duration("timeout", googleoauth.DefaultTimeout, "timeout for requests to Google endpoints")
	rootCmd.PersistentFlags().String("certs_url", googleoauth.DefaultCertsURL, "url of the signing key endpoint")
	rootCmd.PersistentFlags().String("userinfo_url", googleoauth.DefaultUserInfoURL, "url of the userinfo endpoint")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		log.Logger.Fatal(err)
	}
}

// initConfig reads GOOGLE_OAUTH_* environment variables and replays them
// through pflag validation, so a bad env value fails like a bad flag.
func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("google_oauth")
	viper.AutomaticEnv()

	var fromEnv []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed && viper.IsSet(f.Name) {
			fromEnv = append(fromEnv, f.Name)
		}
	})
	for _, name := range fromEnv {
		if err := cmd.Flags().Set(name, fmt.Sprintf("%v", viper.Get(name))); err != nil {
			return err
		}
	}
	return nil
}

// newClient builds a verification client from the bound flags.
func newClient() *googleoauth.Client {
	return googleoauth.NewWithIDs(viper.GetStringSlice("client_id"),
		googleoauth.WithTimeout(viper.GetDuration("timeout")),
		googleoauth.WithCertsURL(viper.GetString("certs_url")),
		googleoauth.WithUserInfoURL(viper.GetString("userinfo_url")))
}
