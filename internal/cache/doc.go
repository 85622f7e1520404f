// Package cache provides a generic, thread-safe cache bounded by both entry
// age and entry count. The documentation store uses it to keep parsed and
// rendered documents between requests.
package cache
