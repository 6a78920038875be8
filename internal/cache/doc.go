// Package cache provides a small JSON cache over any fiber.Storage, used for
// the dashboard counters.
package cache
