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

package boottraverse

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/just-buildsystem/justbuild/internal/boot/bootgraph"
	"go.uber.org/zap"
)

// runAction executes action inside actionDir, which must already have every
// input staged. It creates the parent directory of every declared output
// before running the command, then runs the command with actionDir as its
// working directory (spec.md §4.2, mirroring
// original_source/bin/bootstrap-traverser.py's run_action).
//
// A non-zero exit, a missing declared output, or a failure to start the
// command is a fatal action failure (spec.md §7): the error wraps the
// action id, command, and environment for diagnostics.
func runAction(ctx context.Context, actionID string, action bootgraph.Action, actionDir string, logger *zap.Logger) error {
	for _, out := range action.Output {
		if err := os.MkdirAll(filepath.Join(actionDir, filepath.Dir(out)), 0o755); err != nil {
			return fmt.Errorf("boottraverse: action %q: create output directory for %q: %w", actionID, out, err)
		}
	}

	logger.Info("running action",
		zap.String("action_id", actionID),
		zap.Strings("command", action.Command),
		zap.Any("env", action.Env),
	)

	if len(action.Command) == 0 {
		return fmt.Errorf("boottraverse: action %q: empty command", actionID)
	}
	cmd := exec.CommandContext(ctx, action.Command[0], action.Command[1:]...)
	cmd.Dir = actionDir
	if action.Env != nil {
		cmd.Env = envSlice(action.Env)
	} else {
		cmd.Env = os.Environ()
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("boottraverse: action %q failed: command %v, env %v: %w", actionID, action.Command, action.Env, err)
	}

	for _, out := range action.Output {
		if _, err := os.Lstat(filepath.Join(actionDir, out)); err != nil {
			return fmt.Errorf("boottraverse: action %q did not produce declared output %q: %w", actionID, out, err)
		}
	}
	return nil
}

func envSlice(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
