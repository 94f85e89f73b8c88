package receiver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	ingestPrefix = "/api/v1/sources/"
	ingestSuffix = "/predictions"

	// maxBodyBytes bounds a single ingest request.
	maxBodyBytes = 16 << 20
)

// ServeHTTP handles POST /api/v1/sources/{id}/predictions.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := sourceFromPath(req.URL.Path)
	if !ok {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	res, err := r.Ingest(TransportHTTP, id, http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, ErrInvalidSourceID):
			jsonErr(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &tooLarge):
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			jsonErr(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// sourceFromPath extracts {id} from /api/v1/sources/{id}/predictions.
func sourceFromPath(path string) (string, bool) {
	return between(path, ingestPrefix, ingestSuffix)
}

// between returns the single non-empty path segment enclosed by prefix and
// suffix.
func between(s, prefix, suffix string) (string, bool) {
	if len(s) <= len(prefix)+len(suffix) ||
		!strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return "", false
	}
	id := s[len(prefix) : len(s)-len(suffix)]
	if strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, map[string]string{"error": msg})
}
