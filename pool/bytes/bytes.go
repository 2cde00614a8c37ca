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

package bytes

import "github.com/gobwas/pool/pbytes"

// Pool is the alias of pbytes.Pool.
type Pool = pbytes.Pool

// GetLen returns a pooled byte slice of the given length.
func GetLen(n int) []byte {
	return pbytes.GetLen(n)
}

// Put puts bytes back to pool.
func Put(buf []byte) {
	pbytes.Put(buf)
}

// Default instantiates a *Pool that reuses slices whose sizes are in a logarithmic range.
func Default() *Pool {
	return pbytes.DefaultPool
}
