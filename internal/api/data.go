package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicehub/internal/device"
)

var errInvalidLimit = errors.New("limit must be an integer")

// addDataRequest is the body of POST /devices/{id}/data/{name}.
type addDataRequest struct {
	Value device.Value `json:"value"`
	Unit  string       `json:"unit"`
}

// addFlatDataRequest is the body of POST /data.
type addFlatDataRequest struct {
	DeviceID string       `json:"device_id"`
	Name     string       `json:"name"`
	Value    device.Value `json:"value"`
	Unit     string       `json:"unit"`
}

// handleListDeviceData returns a device's data, newest first. It serves
// both /devices/{id}/data and /devices/{id}/data/{name}. An unknown device
// is a 404 rather than an empty list.
func (s *Server) handleListDeviceData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name, err := pathParam(r, "name")
	if err != nil {
		writeBadRequest(w, "invalid data name")
		return
	}
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if _, err := s.query.GetByID(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	data, err := s.data.Find(r.Context(), device.DataFilter{DeviceID: id, Name: name, Limit: limit})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeDataList(w, data)
}

// handleAddDeviceData appends one data point to a device.
func (s *Server) handleAddDeviceData(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		writeBadRequest(w, "invalid data name")
		return
	}

	var req addDataRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	d, err := s.data.Add(r.Context(), chi.URLParam(r, "id"), name, req.Value.String(), req.Unit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// handleFindData is the flat data query. Unlike the nested route, a
// device_id with no device yields an empty list.
func (s *Server) handleFindData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	data, err := s.data.Find(r.Context(), device.DataFilter{
		DeviceID: q.Get("device_id"),
		Name:     q.Get("name"),
		Limit:    limit,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeDataList(w, data)
}

// handleAddData appends a data point named in the body.
func (s *Server) handleAddData(w http.ResponseWriter, r *http.Request) {
	var req addFlatDataRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	d, err := s.data.Add(r.Context(), req.DeviceID, req.Name, req.Value.String(), req.Unit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// handleGetData returns one data point by id.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	d, err := s.data.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func writeDataList(w http.ResponseWriter, data []device.DeviceData) {
	if data == nil {
		data = []device.DeviceData{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "count": len(data)})
}
