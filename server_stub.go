// Copyright (c) 2024 The netio Authors
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

package netio

import nerrors "github.com/feathermc/netio/errors"

// NotImplemented is the terminal placeholder backend for ports that do not
// exist yet. Every operation fails loudly and immediately; it is never a
// degraded-functionality path.
type NotImplemented struct{}

// NewNotImplemented returns the stub backend.
func NewNotImplemented() *NotImplemented {
	return &NotImplemented{}
}

// Drain implements ServerDef.
func (*NotImplemented) Drain(func(ServerEvent)) error {
	panic(nerrors.ErrUnsupportedPlatform)
}

// AllocateBuffers implements ServerDef.
func (*NotImplemented) AllocateBuffers([][]byte) error {
	panic(nerrors.ErrUnsupportedPlatform)
}

// WriteAll implements ServerDef.
func (*NotImplemented) WriteAll(*Broadcast, []RefreshItem) {
	panic(nerrors.ErrUnsupportedPlatform)
}

// SubmitEvents implements ServerDef.
func (*NotImplemented) SubmitEvents() {
	panic(nerrors.ErrUnsupportedPlatform)
}

// Shutdown implements ServerDef.
func (*NotImplemented) Shutdown() error {
	panic(nerrors.ErrUnsupportedPlatform)
}
