/*
Copyright © 2019 the retinotopy authors.
This file is part of retinotopy.

retinotopy is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

retinotopy is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with retinotopy.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command retinotopy works with retinotopy models from the command
// line: inspecting them, converting coordinates, sampling and
// plotting them, and fetching published model files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/visualmodel/retinotopy"
	"github.com/visualmodel/retinotopy/registry"
)

var (
	configFile string
	verbose    bool

	loader *registry.Loader

	// ctx is canceled on interrupt so that model fetches stop.
	ctx = context.Background()
)

var rootCmd = &cobra.Command{
	Use:   "retinotopy",
	Short: "work with retinotopy models",
	Long: `retinotopy inspects, queries, samples, and plots models that map
between flattened cortical surfaces and visual-field coordinates.

Model arguments accept either a name from the model registry (see
"retinotopy fetch --help") or a path to a flat mesh model (.fmm)
file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		var config *registry.Config
		if configFile != "" {
			var err error
			if config, err = registry.LoadConfigFile(configFile); err != nil {
				return err
			}
		}
		loader = registry.NewLoader(config, nil)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"TOML configuration file naming the cache directory and extra models")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log at debug level")
}

// modelFlag registers the shared --model flag on a command's flag
// set, returning the destination value.
func modelFlag(fs *pflag.FlagSet) *string {
	return fs.String("model", "", "registry model name or .fmm file path (required)")
}

// loadModel resolves and builds a model named on the command line.
func loadModel(name string) (*retinotopy.RegisteredModel, error) {
	if name == "" {
		return nil, fmt.Errorf("the --model flag is required")
	}
	return loader.Model(ctx, name)
}

// meshModel unwraps the mesh model inside m, if there is one. Some
// subcommands need mesh-only information such as bounds and vertex
// data ranges.
func meshModel(m *retinotopy.RegisteredModel) (*retinotopy.MeshModel, bool) {
	mm, ok := m.Model.(*retinotopy.MeshModel)
	return mm, ok
}

func main() {
	var stop context.CancelFunc
	ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
