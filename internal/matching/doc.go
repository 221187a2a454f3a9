// Package matching resolves an incoming request to a mock definition.
//
// A definition matches when its path equals the request path exactly and
// its method equals the request method or is ANY. When several definitions
// match, the most recently created one wins.
//
// On a miss, CollectNearMisses explains which stored definitions came close
// so the 404 response can point at a likely typo.
package matching
