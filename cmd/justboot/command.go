// Copyright 2020 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/just-buildsystem/justbuild/internal/boot/bootgraph"
	"github.com/just-buildsystem/justbuild/internal/boot/boottraverse"
	"github.com/just-buildsystem/justbuild/internal/pkg/app"
	"github.com/just-buildsystem/justbuild/internal/pkg/app/appcmd"
	"github.com/just-buildsystem/justbuild/internal/pkg/applog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	defaultConfig          = "repo-conf.json"
	defaultOutputDirectory = "out-boot"
	defaultLocalBuildRoot  = ".just-boot"
)

type flags struct {
	config           string
	outputDirectory  string
	localBuildRoot   string
	defaultWorkspace string
	parallel         bool
	jobs             int
	logLevel         string
}

func rootCommand() *appcmd.Command {
	f := &flags{}
	return &appcmd.Command{
		Use:   "justboot [flags] <graph> <targets>",
		Short: "Realize a bootstrap build graph into concrete filesystem artifacts.",
		Args:  cobra.ExactArgs(2),
		BindFlags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVarP(&f.config, "config", "C", defaultConfig, "Repository-description file to use")
			flagSet.StringVarP(&f.outputDirectory, "output", "o", defaultOutputDirectory, "Directory to place output into")
			flagSet.StringVar(&f.localBuildRoot, "local-build-root", defaultLocalBuildRoot, "Root for storing intermediate outputs")
			flagSet.StringVar(&f.defaultWorkspace, "default-workspace", "", "Workspace root to use if a repository specifies none")
			flagSet.BoolVar(&f.parallel, "parallel", false, "Use the parallel (worker-pool) traverser instead of the sequential one")
			flagSet.IntVar(&f.jobs, "jobs", 0, "Worker count for --parallel; 0 selects the number of logical CPUs")
			flagSet.StringVar(&f.logLevel, "log-level", "info", "Log level [debug,info,warn,error]")
		},
		NormalizeFlag: normalizeFlag,
		Run: func(ctx context.Context, container app.Container) error {
			return run(ctx, container, f)
		},
	}
}

// normalizeFlag lets --local-build-root and --local_build_root (as well
// as --default-workspace / --default_workspace) resolve to the same
// flag, matching the two reference traversers' own inconsistent flag
// naming (optparse's bootstrap-traverser.py uses underscores;
// argparse's parallel-bootstrap-traverser.py uses dashes).
func normalizeFlag(_ *pflag.FlagSet, name string) string {
	switch name {
	case "local_build_root":
		return "local-build-root"
	case "default_workspace":
		return "default-workspace"
	default:
		return name
	}
}

func run(ctx context.Context, container app.Container, f *flags) error {
	logger, err := applog.NewLogger(container.Stderr(), f.logLevel, "color")
	if err != nil {
		return err
	}

	graphPath := container.Arg(0)
	targetsPath := container.Arg(1)

	graphData, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("justboot: read graph file: %w", err)
	}
	graph, err := bootgraph.DecodeGraph(graphData)
	if err != nil {
		return err
	}

	targetsData, err := os.ReadFile(targetsPath)
	if err != nil {
		return fmt.Errorf("justboot: read targets file: %w", err)
	}
	targets, err := bootgraph.DecodeTargets(targetsData)
	if err != nil {
		return err
	}

	configData, err := os.ReadFile(f.config)
	if err != nil {
		return fmt.Errorf("justboot: read repository config file: %w", err)
	}
	repoConfig, err := bootgraph.DecodeRepositoryConfig(configData)
	if err != nil {
		return err
	}

	if f.defaultWorkspace != "" {
		abs, err := filepath.Abs(f.defaultWorkspace)
		if err != nil {
			return fmt.Errorf("justboot: resolve --default-workspace: %w", err)
		}
		repoConfig.ApplyDefaultWorkspace(abs)
	}

	outputDirectory, err := filepath.Abs(f.outputDirectory)
	if err != nil {
		return fmt.Errorf("justboot: resolve --output: %w", err)
	}
	localBuildRoot, err := filepath.Abs(f.localBuildRoot)
	if err != nil {
		return fmt.Errorf("justboot: resolve --local-build-root: %w", err)
	}

	// --jobs implies --parallel.
	f.parallel = f.parallel || f.jobs != 0

	return boottraverse.Realize(ctx, graph, targets, repoConfig, boottraverse.Options{
		LocalBuildRoot:  localBuildRoot,
		OutputDirectory: outputDirectory,
		Logger:          logger,
		Parallel:        f.parallel,
		Workers:         f.jobs,
	})
}
