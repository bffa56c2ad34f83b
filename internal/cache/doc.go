// Package cache provides a weighted LRU cache.
//
// Entries carry a weight (1 for count-bounded caches, the byte length for
// byte-bounded ones). When a resource.Controller is attached, the weight of
// every cached entry is reserved from its memory budget, and entries that
// do not fit the budget are not admitted.
package cache
