// Package integration provides integration tests for the baskit sync
// daemon. Each test boots real daemon instances against one shared
// PostgreSQL container and drives them through their public APIs, so
// the scenarios cover the full device-to-device path: local store,
// sync engine, remote store and back.
package integration
