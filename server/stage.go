package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/tarungka/rewind/stream"
)

const maxBodyBytes = 1 << 16

func StageRouter(ctrl Controller) chi.Router {
	router := chi.NewRouter()

	router.Get("/stage", getStage(ctrl))
	router.Post("/checkpoint", postCheckpoint(ctrl))
	router.Post("/rollback", postRollback(ctrl))

	return router
}

func getStage(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := ctrl.Status()
		if err != nil {
			hlog.FromRequest(r).Err(err).Msg("failed to read stage status")
			SendError(w, err, nil)
			return
		}
		SendResponse(w, true, st, "")
	}
}

func postCheckpoint(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := ctrl.Submit(r.Context(), stream.Barrier{})
		if err != nil {
			SendError(w, err, res.Checkpoint)
			return
		}
		SendResponse(w, true, res.Checkpoint, "")
	}
}

func postRollback(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body RollbackModel
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				SendResponseWithHeader(w, false, nil, "request body is required", http.StatusBadRequest, nil)
				return
			}
			SendResponseWithHeader(w, false, nil, "malformed request body: "+err.Error(), http.StatusBadRequest, nil)
			return
		}

		cmd := stream.RollbackToStart()
		if body.Target != nil {
			cmd = stream.RollbackTo(stream.SequenceNumber(*body.Target))
		}
		hlog.FromRequest(r).Info().Str("command", cmd.String()).Msg("rollback requested")

		res, err := ctrl.Submit(r.Context(), stream.NewRollbackMessage(cmd))
		if err != nil {
			SendError(w, err, nil)
			return
		}
		SendResponse(w, true, res.Rollback, "")
	}
}
