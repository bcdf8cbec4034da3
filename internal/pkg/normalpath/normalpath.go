// Copyright 2020 Buf Technologies Inc.
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

// Package normalpath provides functions similar to filepath for validating
// the stage-relative locations named by tree and action descriptors.
//
// A normalized path is cleaned and to-slash'ed.
// A validated path additionally is relative and does not jump context.
package normalpath

import (
	"errors"
	"path/filepath"
	"strings"
)

// normalizedRelPathJumpContextPrefix is with "/" instead of os.PathSeparator
// since it is checked against normalized paths.
const normalizedRelPathJumpContextPrefix = "../"

// errNotRelative is the error returned if the path is not relative.
var errNotRelative = errors.New("expected to be relative")

// errOutsideContextDir is the error returned if the path jumps outside the context directory.
var errOutsideContextDir = errors.New("is outside the context directory")

// Error is a path error.
type Error struct {
	Path string
	Err  error
}

// NewError returns a new Error.
func NewError(path string, err error) *Error {
	return &Error{Path: path, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	errString := "error"
	if e.Err != nil {
		errString = e.Err.Error()
	}
	return e.Path + ": " + errString
}

// NormalizeAndValidate normalizes and validates the given stage-relative path.
//
// Returns an Error if the path is absolute or jumps outside of its stage
// directory via a leading "../" component; this is the check every
// location in a tree or action descriptor must pass before it is joined
// onto a realization directory.
func NormalizeAndValidate(path string) (string, error) {
	path = Normalize(path)
	if filepath.IsAbs(path) {
		return "", NewError(path, errNotRelative)
	}
	if path == ".." || strings.HasPrefix(path, normalizedRelPathJumpContextPrefix) {
		return "", NewError(path, errOutsideContextDir)
	}
	return path, nil
}

// Normalize cleans and to-slashes the given path.
//
// If the path is "" or ".", this returns ".".
func Normalize(path string) string {
	return filepath.Clean(filepath.ToSlash(path))
}

// Unnormalize converts a normalized path back to the OS-native separator.
func Unnormalize(path string) string {
	return filepath.FromSlash(path)
}

// Dir is equivalent to filepath.Dir, normalizing before returning.
func Dir(path string) string {
	return Normalize(filepath.Dir(Unnormalize(path)))
}

// Join is equivalent to filepath.Join, normalizing before returning.
//
// Empty strings are ignored. Can return empty string.
func Join(paths ...string) string {
	unnormalized := make([]string, len(paths))
	for i, path := range paths {
		unnormalized[i] = Unnormalize(path)
	}
	value := filepath.Join(unnormalized...)
	if value == "" {
		return ""
	}
	return Normalize(value)
}
