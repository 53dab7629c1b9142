// Copyright (c) 2026 The dataplatform Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import "sync"

var (
	activeMu sync.RWMutex
	active   *Session
)

// Active returns the active session, or nil if none has been created or the
// last one was stopped.
func Active() *Session {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

func setActive(s *Session) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = s
}

// clearActive unsets the active session if it is still s.
func clearActive(s *Session) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active == s {
		active = nil
	}
}
