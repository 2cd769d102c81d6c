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

package standarderrors

import "errors"

var (
	// ErrViewExpired is returned when the submitted view state cannot be
	// restored: the token failed to decode or verify, or the server side
	// entry is gone. Users can recover by reloading the page.
	ErrViewExpired = errors.New("view expired")

	// ErrResponseComplete is returned by operations that refuse to touch a
	// response that was already completed.
	ErrResponseComplete = errors.New("response already complete")

	// ErrViewNotFound is returned when no template exists for a view id.
	ErrViewNotFound = errors.New("view not found")

	// ErrSessionInvalidated is returned when a destroyed session is used.
	ErrSessionInvalidated = errors.New("session invalidated")
)
