// Copyright 2018 Google Inc.
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

// Package log provides process-wide logging with an object-labelling
// mechanism, so long-lived values (channels, clients, the ironvar store)
// can be named in log output without every call site formatting an id by
// hand.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	logger = log.New(os.Stderr, "", log.LstdFlags)

	idMu    sync.RWMutex
	idOf    = map[interface{}]string{}
	nextSeq uint64

	fineMu   sync.RWMutex
	fineMods []string
)

func init() {
	for _, arg := range os.Args {
		if mods, ok := trimPrefix(arg, "--finelog="); ok {
			fineMu.Lock()
			fineMods = append(fineMods, strings.Split(mods, ",")...)
			fineMu.Unlock()
		}
	}
}

func trimPrefix(s, prefix string) (string, bool) {
	return strings.TrimPrefix(s, prefix), strings.HasPrefix(s, prefix)
}

// SetOutput redirects log output, e.g. to a file configured at startup.
func SetOutput(w io.Writer) { logger.SetOutput(w) }

// Register gives obj a stable, human-readable id for log output. Call it
// once when the object is constructed.
func Register(obj interface{}, label string) {
	idMu.Lock()
	defer idMu.Unlock()
	nextSeq++
	idOf[obj] = fmt.Sprintf("%s#%d", label, nextSeq)
}

// ID returns the registered label for obj, or a generic placeholder if it
// was never registered.
func ID(obj interface{}) string {
	idMu.RLock()
	defer idMu.RUnlock()
	if id, ok := idOf[obj]; ok {
		return id
	}
	return fmt.Sprintf("%T", obj)
}

// Log always logs a formatted message.
func Log(format string, args ...interface{}) {
	logger.Output(2, fmt.Sprintf(format, args...))
}

// Fine logs a formatted message only if fine logging is enabled for the
// given subsystem, e.g. Fine("client:volume", "reconnecting (attempt %d)", n).
// Fine logging is enabled with --finelog=client:volume,client:network.
func Fine(subsystem, format string, args ...interface{}) {
	if fineEnabled(subsystem) {
		logger.Output(2, fmt.Sprintf(format, args...))
	}
}

func fineEnabled(subsystem string) bool {
	fineMu.RLock()
	defer fineMu.RUnlock()
	for _, m := range fineMods {
		if strings.HasPrefix(subsystem, m) {
			return true
		}
	}
	return false
}

// Fatal logs a "must" violation (spec.md §7.1: a programming invariant, such
// as a bounded channel that should never be full, was broken) and
// terminates the process. Call sites using this are the explicit
// send_expect vocabulary's failure path.
func Fatal(format string, args ...interface{}) {
	logger.Output(2, "FATAL: "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
