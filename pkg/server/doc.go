// Package server assembles a runnable mock server from a config.Config.
//
// It owns every long-lived component: the registry, the traffic log, the
// optional persistent store with its background persister, and the
// http.Server that routes /_admin to the admin API and everything else to
// the mocked traffic handler.
package server
