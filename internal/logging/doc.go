// Package logging provides structured JSON logging for aide.
//
// A [Logger] wraps log/slog and carries persistent attributes (session,
// terminal, step) into child loggers:
//
//	logger, err := logging.NewLogger(logging.Options{Dir: dir, Level: "DEBUG"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithSession(id).WithStep(2).Info("step updated", "fragments", 3)
//
// When Options.Dir is set, entries go to aide.log in that directory through a
// [RotatingWriter], which keeps at most MaxBackups rotated files named
// aide.log.1 (newest) through aide.log.N (oldest).
package logging
