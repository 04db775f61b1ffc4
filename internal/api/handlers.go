package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/star/isstrack/internal/ephemeris"
	"github.com/star/isstrack/internal/httputil"
	"github.com/star/isstrack/internal/oem"
)

// statusFor maps query and reload errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		qe *ephemeris.InvalidQueryParamError
		fe *oem.FetchError
		pe *oem.ParseError
	)
	switch {
	case errors.Is(err, ephemeris.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &qe):
		return http.StatusBadRequest
	case errors.Is(err, ephemeris.ErrEmptyDataset):
		return http.StatusConflict
	case errors.As(err, &fe), errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	httputil.WriteError(w, statusFor(err), err.Error())
}

// GET /
func allHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, svc.All())
	}
}

// GET /epochs?limit=&offset=
func epochsHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		epochs, err := svc.EpochWindow(q.Get("limit"), q.Get("offset"))
		if err != nil {
			writeErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, epochs)
	}
}

// GET /epochs/{epoch}
func epochHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sv, err := svc.Epoch(r.PathValue("epoch"))
		if err != nil {
			writeErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sv)
	}
}

// GET /epochs/{epoch}/speed
func speedHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.Speed(r.PathValue("epoch"))
		if err != nil {
			writeErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rep)
	}
}

// GET /epochs/{epoch}/location
func locationHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.Location(r.Context(), r.PathValue("epoch"))
		if err != nil {
			writeErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rep)
	}
}

// GET /now
func nowHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.Now(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rep)
	}
}

func commentHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, svc.Comments())
	}
}

func headerHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, svc.Header())
	}
}

func metadataHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, svc.Metadata())
	}
}

func helpHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, svc.Help())
	}
}

// DELETE /delete-data
func deleteHandler(svc *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := svc.DeleteAll()
		httputil.WriteJSON(w, http.StatusOK, ds.StateVectors)
	}
}

// POST /post-data
func reloadHandler(svc *ephemeris.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Reloads run to completion even if the client disconnects.
		ds, err := svc.Reload(context.WithoutCancel(r.Context()))
		if err != nil {
			logger.Warn("reload request failed", "component", "api", "error", err)
			writeErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ds)
	}
}
