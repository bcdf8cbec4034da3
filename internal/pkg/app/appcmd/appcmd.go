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

// Package appcmd contains helper functionality for applications using commands.
package appcmd

import (
	"context"
	"errors"
	"strings"

	"github.com/just-buildsystem/justbuild/internal/pkg/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Command is a single, flat CLI command (justboot has no sub-commands).
type Command struct {
	// Use is the one-line usage message.
	// Required.
	Use string
	// Short is the short message shown in the 'help' output.
	Short string
	// Long is the long message shown in the 'help' output.
	// The Short field is prepended to the Long field with two newlines.
	Long string
	// Args are the expected positional arguments.
	Args cobra.PositionalArgs
	// BindFlags allows binding of flags on build.
	BindFlags func(*pflag.FlagSet)
	// NormalizeFlag allows for normalization of flag names, so that
	// e.g. --local-build-root and --local_build_root both resolve to the
	// same flag.
	NormalizeFlag func(*pflag.FlagSet, string) string
	// Run is the command to run.
	// Required.
	Run func(context.Context, app.Container) error
}

// Main runs the application using the OS container and calling os.Exit on the return value of Run.
func Main(ctx context.Context, command *Command) {
	app.Main(ctx, newRunFunc(command))
}

// Run runs the application using the container.
func Run(ctx context.Context, container app.Container, command *Command) error {
	return app.Run(ctx, container, newRunFunc(command))
}

func newRunFunc(command *Command) func(context.Context, app.Container) error {
	return func(ctx context.Context, container app.Container) error {
		return run(ctx, container, command)
	}
}

func run(
	ctx context.Context,
	container app.Container,
	command *Command,
) error {
	if err := commandValidate(command); err != nil {
		return err
	}
	var runErr error
	cobraCommand := &cobra.Command{
		Use:   command.Use,
		Args:  command.Args,
		Short: strings.TrimSpace(command.Short),
		Run: func(_ *cobra.Command, args []string) {
			runErr = command.Run(ctx, app.NewContainer(
				environMap(container),
				container.Stdin(),
				container.Stdout(),
				container.Stderr(),
				args...,
			))
		},
	}
	if command.Long != "" {
		cobraCommand.Long = cobraCommand.Short + "\n\n" + strings.TrimSpace(command.Long)
	}
	if command.BindFlags != nil {
		command.BindFlags(cobraCommand.Flags())
	}
	if command.NormalizeFlag != nil {
		cobraCommand.Flags().SetNormalizeFunc(normalizeFunc(command.NormalizeFlag))
	}
	cobraCommand.SetArgs(app.Args(container))
	cobraCommand.SetOut(container.Stderr())
	cobraCommand.SetErr(container.Stderr())
	if err := cobraCommand.Execute(); err != nil {
		return err
	}
	return runErr
}

func commandValidate(command *Command) error {
	if command.Use == "" {
		return errors.New("must set Command.Use")
	}
	if command.Long != "" && command.Short == "" {
		return errors.New("must set Command.Short if Command.Long is set")
	}
	if command.Run == nil {
		return errors.New("must set Command.Run")
	}
	return nil
}

func normalizeFunc(f func(*pflag.FlagSet, string) string) func(*pflag.FlagSet, string) pflag.NormalizedName {
	return func(flagSet *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(f(flagSet, name))
	}
}

func environMap(envContainer app.EnvContainer) map[string]string {
	m := make(map[string]string)
	envContainer.ForEachEnv(func(key string, value string) {
		m[key] = value
	})
	return m
}
