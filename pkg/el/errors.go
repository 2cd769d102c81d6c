// Copyright 2025 UMH Systems GmbH
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

package el

import (
	"errors"
	"fmt"
)

var (
	ErrPropertyNotFound    = errors.New("property not found")
	ErrPropertyNotWritable = errors.New("property not writable")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrMethodNotFound      = errors.New("method not found")
	ErrSyntax              = errors.New("syntax error")
)

// EvaluationError is returned by every evaluation failure. Err is one of the
// sentinel errors above, possibly wrapped with more detail.
type EvaluationError struct {
	Expr string
	Op   string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func evalError(op, expr string, err error) error {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return err
	}

	return &EvaluationError{Expr: expr, Op: op, Err: err}
}
