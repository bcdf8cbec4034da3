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

// Package app provides an injectable process environment.
//
// The traverser's Run entry point depends only on a Container, never on
// os.Args/os.Stdin/os.Environ directly, so it can be driven from tests or
// from an embedding program the same way it is driven from a real process.
package app

import "io"

// EnvContainer provides environment variables.
type EnvContainer interface {
	// Env gets the environment variable value for the key, or "" if not set.
	Env(key string) string
	// ForEachEnv iterates over all environment variables.
	ForEachEnv(func(string, string))
}

// StdinContainer provides stdin.
type StdinContainer interface {
	Stdin() io.Reader
}

// StdoutContainer provides stdout.
type StdoutContainer interface {
	Stdout() io.Writer
}

// StderrContainer provides stderr.
type StderrContainer interface {
	Stderr() io.Writer
}

// ArgContainer provides arguments.
//
// Arg(0) is the first argument, not the binary path.
type ArgContainer interface {
	NumArgs() int
	Arg(int) string
}

// EnvStderrContainer is an EnvContainer and StderrContainer.
type EnvStderrContainer interface {
	EnvContainer
	StderrContainer
}

// Container is the full process container.
type Container interface {
	EnvContainer
	StdinContainer
	StdoutContainer
	StderrContainer
	ArgContainer
}

type container struct {
	EnvContainer
	StdinContainer
	StdoutContainer
	StderrContainer
	ArgContainer
}

func newContainer(
	envContainer EnvContainer,
	stdinContainer StdinContainer,
	stdoutContainer StdoutContainer,
	stderrContainer StderrContainer,
	argContainer ArgContainer,
) *container {
	return &container{
		EnvContainer:    envContainer,
		StdinContainer:  stdinContainer,
		StdoutContainer: stdoutContainer,
		StderrContainer: stderrContainer,
		ArgContainer:    argContainer,
	}
}
