// Package shared holds helpers used across the license server packages that
// belong to no single layer.
//
// The testutil subpackage provides a log-capturing slog handler and license
// record fixtures for package tests.
package shared
