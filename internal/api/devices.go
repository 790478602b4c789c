package api

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicehub/internal/device"
)

// handleListDevices returns devices, with optional exact-match filters.
//
// Query parameters:
//   - name: filter by device name
//   - address: filter by network address
//   - limit: keep only the first n devices in creation order
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseLimit(q)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var devices []device.Device
	if q.Get("name") == "" && q.Get("address") == "" && limit == 0 {
		devices, err = s.query.GetAll(r.Context())
	} else {
		devices, err = s.query.Find(r.Context(), device.DeviceFilter{
			Name:    q.Get("name"),
			Address: q.Get("address"),
			Limit:   limit,
		})
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleRegisterDevice registers the calling host as a device. The address
// is the caller's, never taken from the body, so a retry returns the same
// device.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var meta device.Metadata
	if err := decodeBody(r, &meta, true); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	address := s.clientAddress(r)
	dev, err := s.registration.Register(r.Context(), address, meta)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if claims := claimsFromContext(r.Context()); claims != nil {
		s.logger.Info("device registered via API", "device_id", dev.ID, "subject", claims.Subject)
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.query.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleUpdateDevice applies a partial update. PUT and PATCH behave the
// same; absent fields are left untouched.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var patch device.Patch
	if err := decodeBody(r, &patch, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	dev, err := s.update.Update(r.Context(), chi.URLParam(r, "id"), &patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// clientAddress returns the first X-Forwarded-For entry when trusted,
// otherwise the host part of the remote address.
func (s *Server) clientAddress(r *http.Request) string {
	if s.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseLimit reads ?limit=. Absent means zero (unlimited). Negative values
// pass through so the service rejects them with its own message.
func parseLimit(q url.Values) (int, error) {
	raw := q.Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidLimit
	}
	return n, nil
}

// pathParam returns a decoded route parameter. chi matches on the raw
// path when it holds escapes, so names like "temp%2Finside" need decoding.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}
