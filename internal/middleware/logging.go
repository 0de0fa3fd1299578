// internal/middleware/logging.go
package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware logs every HTTP request with its method, path, duration, and
// caller address.
func LogMiddleware(log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"ip":       r.RemoteAddr,
			}).Info("http request")
		})
	}
}

// SocketOpened records a WebSocket attach. Channel names a lobby code or the
// matchmaking queue.
func SocketOpened(log logrus.FieldLogger, channel, remote string) {
	log.WithFields(logrus.Fields{
		"channel": channel,
		"ip":      remote,
	}).Info("socket opened")
}

// SocketClosed records a WebSocket detach, with the closing error if the
// drop was not clean.
func SocketClosed(log logrus.FieldLogger, channel, remote string, err error) {
	fields := logrus.Fields{
		"channel": channel,
		"ip":      remote,
	}
	if err != nil {
		fields["error"] = err
	}
	log.WithFields(fields).Info("socket closed")
}
