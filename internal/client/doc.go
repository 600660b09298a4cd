// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client assembles the vaultsync runtime.
//
// It wires local storage, the secret wrapper, the HTTP adapters, client
// services and background synchronization into a single process lifecycle.
package client
