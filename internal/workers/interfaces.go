// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package workers runs the background tasks of a long-lived vaultsync
// process. It defines the Worker interface and a Workers aggregate that
// starts and stops several workers as one.
package workers

import "context"

// Worker is a background task bound to a context.
//
// Run must not block: implementations spawn their own goroutines and keep
// working until ctx is cancelled or Stop is called. Stop blocks until the
// worker has exited.
type Worker interface {
	Run(ctx context.Context)
	Stop()
}
