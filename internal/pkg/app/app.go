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

package app

import (
	"context"
	"io"
	"os"
	"sort"
)

// NewContainer returns a new Container for the given values.
func NewContainer(
	env map[string]string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	args ...string,
) Container {
	return newContainer(
		newEnvContainer(env),
		newStdinContainer(stdin),
		newStdoutContainer(stdout),
		newStderrContainer(stderr),
		newArgContainer(args),
	)
}

// NewOSContainer returns a new Container backed by the current process.
func NewOSContainer() (Container, error) {
	envContainer, err := newEnvContainerForEnviron(os.Environ())
	if err != nil {
		return nil, err
	}
	return newContainer(
		envContainer,
		newStdinContainer(os.Stdin),
		newStdoutContainer(os.Stdout),
		newStderrContainer(os.Stderr),
		newArgContainer(os.Args[1:]),
	), nil
}

// Environ returns the sorted "key=value" environment of the given EnvContainer.
func Environ(envContainer EnvContainer) []string {
	var environ []string
	envContainer.ForEachEnv(func(key string, value string) {
		environ = append(environ, key+"="+value)
	})
	sort.Strings(environ)
	return environ
}

// Args returns all arguments of the given ArgContainer.
func Args(argContainer ArgContainer) []string {
	args := make([]string, argContainer.NumArgs())
	for i := range args {
		args[i] = argContainer.Arg(i)
	}
	return args
}

// Main runs f using an OS-backed Container and calls os.Exit on the result.
func Main(ctx context.Context, f func(context.Context, Container) error) {
	container, err := NewOSContainer()
	if err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode(Run(ctx, container, f)))
}

// Run runs f using the given Container, printing any error to stderr.
func Run(ctx context.Context, container Container, f func(context.Context, Container) error) error {
	err := f(ctx, container)
	if err != nil {
		printError(container, err)
	}
	return err
}
