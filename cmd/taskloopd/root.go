// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskloop/taskloop/config"
)

const defaultCfgFile = "taskloopd.toml"

var cfgFile string

// newRootCmd builds the command tree, modeled on cmd/lind's
// storage/standalone command shape: a bare "run" plus an "init-config"
// helper, both taking a --config flag.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskloopd",
		Short: "Run the taskloop demo daemon",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file path, default is %s", defaultCfgFile))

	root.AddCommand(newRunCmd(), newInitConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "starts the daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				path = defaultCfgFile
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			srv := NewServer(cfg)
			printBanner(cfg)
			return srv.Run()
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "create a new default config file",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				path = defaultCfgFile
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config file %s already exists", path)
			}
			return config.WriteDefault(path)
		},
	}
}

func printBanner(cfg *config.Tunables) {
	banner := color.New(color.FgCyan, color.Bold)
	_, _ = banner.Printf("taskloopd listening on :%d\n", cfg.HTTPPort)
}
