// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package utils provides general-purpose helper utilities used across
// different parts of the application: the resty HTTP client wrapper, keyed
// hashing, identifier generation and access token inspection.
package utils
