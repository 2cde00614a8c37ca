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

import (
	"sync"

	"github.com/eapache/queue"
)

// eventQueue buffers ServerEvents produced by backend internals (reader
// goroutines, submit completions) until the next Drain. Pushes and pops are
// serialized by a mutex; Drain-side delivery happens outside the lock.
type eventQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newEventQueue() *eventQueue {
	return &eventQueue{q: queue.New()}
}

func (eq *eventQueue) push(ev ServerEvent) {
	eq.mu.Lock()
	eq.q.Add(ev)
	eq.mu.Unlock()
}

// popAll moves every queued event into a slice, oldest first.
func (eq *eventQueue) popAll() []ServerEvent {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	n := eq.q.Length()
	if n == 0 {
		return nil
	}
	evs := make([]ServerEvent, 0, n)
	for i := 0; i < n; i++ {
		evs = append(evs, eq.q.Remove().(ServerEvent))
	}
	return evs
}
