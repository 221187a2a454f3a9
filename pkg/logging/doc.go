// Package logging provides structured logging configuration for mimic.
//
// Every component takes a *slog.Logger and defaults to Nop. The server
// builds one logger from config and hands it down:
//
//	logger, closer := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	    File:   logging.FileConfig{Path: "mimic.log", MaxSizeMB: 50},
//	})
//	defer closer.Close()
//
//	logger.Info("server started", "port", 4280)
//	logger.Error("failed to connect", "error", err)
//
// Levels are debug, info, warn and error; ParseLevel and ParseFormat accept
// the spellings used in config files, env vars and flags. Text output is for
// terminals, JSON output is for log shippers.
//
// # Files
//
// When File.Path is set, output goes to a lumberjack rotating file. Set
// File.Tee to keep writing to Output as well.
package logging
