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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/authlayer/google-oauth-go/pkg/log"
)

// accessTokenCmd represents the access-token command
var accessTokenCmd = &cobra.Command{
	Use:   "access-token <token>",
	Short: "verify a Google access token",
	Long:  `Verifies a Google-issued access token against the userinfo endpoint and prints the profile as JSON`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Setup the logger to dev/prod
		log.ConfigureLogger(viper.GetString("log_type"))

		info, err := newClient().ValidateAccessToken(cmd.Context(), args[0])
		if err != nil {
			log.CliLogger.Fatal(err)
		}

		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			log.Logger.Fatal(err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(accessTokenCmd)
}
