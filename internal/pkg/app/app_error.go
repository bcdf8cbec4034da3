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
	"fmt"
	"strconv"
)

type appError struct {
	exitCode int
	message  string
}

// NewError returns a new error that carries an explicit process exit code.
func NewError(exitCode int, message string) error {
	return newAppError(exitCode, message)
}

func newAppError(exitCode int, message string) *appError {
	if exitCode == 0 {
		message = fmt.Sprintf(
			"got invalid exit code %d when constructing error (original message was %q)",
			exitCode,
			message,
		)
		exitCode = 1
	}
	return &appError{
		exitCode: exitCode,
		message:  message,
	}
}

func (e *appError) Error() string {
	if e.message != "" {
		return e.message
	}
	return "exit status " + strconv.Itoa(e.exitCode)
}

func printError(container StderrContainer, err error) {
	if errString := err.Error(); errString != "" {
		_, _ = fmt.Fprintln(container.Stderr(), errString)
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if appErr, ok := err.(*appError); ok {
		return appErr.exitCode
	}
	return 1
}
