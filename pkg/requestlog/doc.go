// Package requestlog records the outcome of every request the mock server
// handles, for inspection through the admin API.
//
// It is distinct from operational logging, which uses log/slog. Entries are
// immutable once appended and are only dropped when the bounded buffer
// wraps around.
//
//	log := requestlog.New(1000)
//	log.Append(requestlog.Entry{Method: "GET", Path: "/a", Outcome: requestlog.OutcomeMatch})
//	recent := log.Recent(10)
package requestlog
