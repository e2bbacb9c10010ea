package audit

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// LogsHandler serves GET /audit-logs?hours=&minutes=, returning the events
// of the last hours+minutes from ring. Without either parameter every
// buffered event is returned. Windows beyond the representable range are
// clamped.
func LogsHandler(ring *RingBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, hasHours, err := nonNegative(r, "hours")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		minutes, hasMinutes, err := nonNegative(r, "minutes")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var since time.Time
		if hasHours || hasMinutes {
			since = time.Now().Add(-window(hours, minutes))
		}
		writeJSON(w, http.StatusOK, ring.Since(since))
	}
}

const maxWindow = time.Duration(math.MaxInt64)

func window(hours, minutes int64) time.Duration {
	if hours > int64(maxWindow/time.Hour) || minutes > int64(maxWindow/time.Minute) {
		return maxWindow
	}
	h := time.Duration(hours) * time.Hour
	m := time.Duration(minutes) * time.Minute
	if h > maxWindow-m {
		return maxWindow
	}
	return h + m
}

func nonNegative(r *http.Request, name string) (int64, bool, error) {
	if !r.URL.Query().Has(name) {
		return 0, false, nil
	}
	v := r.URL.Query().Get(name)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("invalid value %q for parameter %s", v, name)
	}
	return n, true, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": "bad_request", "message": message})
}
