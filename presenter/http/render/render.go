package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xbridge/bridge-coordinator/db"
	"github.com/xbridge/bridge-coordinator/logging"
)

var ErrBadRequest = errors.New("bad request")

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	data, err := marshal(r, res)
	if err != nil {
		Error(w, r, fmt.Errorf("failed to marshal JSON result: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(data); err != nil {
		logging.LoggerFromContext(r.Context()).WithError(err).Warn("failed to write http response")
	}
}

func marshal(r *http.Request, res interface{}) ([]byte, error) {
	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		return json.MarshalIndent(res, "", "  ")
	}
	return json.Marshal(res)
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	}

	logger := logging.LoggerFromContext(r.Context()).WithError(err)
	if status == http.StatusInternalServerError {
		logger.Error("request handling failed")
	} else {
		logger.Debug("request rejected")
	}
	http.Error(w, err.Error(), status)
}
