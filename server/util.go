package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tarungka/rewind/checkpoint"
	"github.com/tarungka/rewind/engine"
)

func createResponse(success bool, data interface{}, errorMsg string) ResponseModel {
	response := ResponseModel{
		Success: success,
		Data:    data,
		Error:   errorMsg,
	}
	return response
}

func SendResponse(w http.ResponseWriter, success bool, data interface{}, errorMsg string) {
	SendResponseWithHeader(w, success, data, errorMsg, 0, nil)
}

func SendResponseWithHeader(w http.ResponseWriter, success bool, data interface{}, errorMsg string, statusCode int, payloadHeaders map[string]string) {
	response := createResponse(success, data, errorMsg)
	w.Header().Set("Content-Type", "application/json")

	// Set additional headers
	for key, value := range payloadHeaders {
		w.Header().Set(key, value)
	}

	switch {
	case statusCode != 0:
		w.WriteHeader(statusCode)
	case success:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"success":false,"error":"Internal Server Error"}`, http.StatusInternalServerError)
	}
}

// SendError writes err with the status code matching its kind.
func SendError(w http.ResponseWriter, err error, data interface{}) {
	SendResponseWithHeader(w, false, data, err.Error(), statusFor(err), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoApplicableCheckpoint):
		return http.StatusNotFound
	case errors.Is(err, checkpoint.ErrAlreadyExists), errors.Is(err, engine.ErrCheckpointingDisabled):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnknownCommand), errors.Is(err, engine.ErrUnsupportedEvent):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotifyFailed):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrDispatcherStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
