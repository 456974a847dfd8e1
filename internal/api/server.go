package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sekai02/redcloud-nvs/internal/ids"
	"github.com/sekai02/redcloud-nvs/internal/nvs"
	"github.com/sekai02/redcloud-nvs/internal/storage"
	"github.com/sekai02/redcloud-nvs/pkg/nvsapi"
)

var errBadRequest = errors.New("api: bad request")

// Server exposes an nvsapi.API over HTTP.
type Server struct {
	nvs    nvsapi.API
	logger *slog.Logger
}

func NewServer(api nvsapi.API, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{nvs: api, logger: logger}
}

// Handler returns the routed handler wrapped in request ID, recovery and
// access log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/sessions", s.handleOpen)
	mux.HandleFunc("GET /v1/sessions", s.handleList)
	mux.HandleFunc("DELETE /v1/sessions/{handle}", s.handleClose)
	mux.HandleFunc("POST /v1/sessions/{handle}/commit", s.handleCommit)
	mux.HandleFunc("PUT /v1/sessions/{handle}/keys/{key}", s.handleSet)
	mux.HandleFunc("GET /v1/sessions/{handle}/keys/{key}", s.handleGet)
	mux.HandleFunc("GET /v1/sessions/{handle}/keys/{key}/size", s.handleSize)
	mux.HandleFunc("DELETE /v1/sessions/{handle}/keys/{key}", s.handleEraseKey)
	mux.HandleFunc("DELETE /v1/sessions/{handle}/keys", s.handleEraseAll)
	mux.HandleFunc("GET /v1/dump", s.handleDump)

	return Chain(mux, RequestID(), AccessLog(s.logger), Recover(s.logger))
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string `json:"namespace"`
		Writable  bool   `json:"writable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h, err := s.nvs.Open(r.Context(), req.Namespace, req.Writable)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"handle": nvsapi.HandleToUint64(h)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.nvs.Handles(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	type session struct {
		Handle    uint64 `json:"handle"`
		Namespace uint8  `json:"namespace"`
		ReadOnly  bool   `json:"read_only"`
	}
	sessions := make([]session, len(entries))
	for i, e := range entries {
		sessions[i] = session{
			Handle:    nvsapi.HandleToUint64(e.Handle),
			Namespace: uint8(e.Namespace),
			ReadOnly:  e.ReadOnly,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	h, ok := pathHandle(w, r)
	if !ok {
		return
	}
	if err := s.nvs.Close(r.Context(), h); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	h, ok := pathHandle(w, r)
	if !ok {
		return
	}
	if err := s.nvs.Commit(r.Context(), h); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	h, ok := pathHandle(w, r)
	if !ok {
		return
	}
	typ, ok := queryType(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, storage.MaxValueSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.set(r, h, r.PathValue("key"), typ, body); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) set(r *http.Request, h ids.Handle, key string, typ storage.ItemType, body []byte) error {
	ctx := r.Context()
	switch typ {
	case storage.TypeString:
		return s.nvs.SetString(ctx, h, key, string(body))
	case storage.TypeBlob:
		return s.nvs.SetBlob(ctx, h, key, body)
	}

	text := strings.TrimSpace(string(body))
	bits := typ.Width() * 8
	if typ.Signed() {
		v, err := strconv.ParseInt(text, 10, bits)
		if err != nil {
			return fmt.Errorf("%w: %s value: %v", errBadRequest, typ, err)
		}
		switch typ {
		case storage.TypeI8:
			return s.nvs.SetI8(ctx, h, key, int8(v))
		case storage.TypeI16:
			return s.nvs.SetI16(ctx, h, key, int16(v))
		case storage.TypeI32:
			return s.nvs.SetI32(ctx, h, key, int32(v))
		default:
			return s.nvs.SetI64(ctx, h, key, v)
		}
	}

	v, err := strconv.ParseUint(text, 10, bits)
	if err != nil {
		return fmt.Errorf("%w: %s value: %v", errBadRequest, typ, err)
	}
	switch typ {
	case storage.TypeU8:
		return s.nvs.SetU8(ctx, h, key, uint8(v))
	case storage.TypeU16:
		return s.nvs.SetU16(ctx, h, key, uint16(v))
	case storage.TypeU32:
		return s.nvs.SetU32(ctx, h, key, uint32(v))
	default:
		return s.nvs.SetU64(ctx, h, key, v)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	h, ok := pathHandle(w, r)
	if !ok {
		return
	}
	typ, ok := queryType(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	key := r.PathValue("key")

	if typ == storage.TypeBlob {
		data, err := s.nvs.ReadBlob(ctx, h, key)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
		return
	}

	value, err := s.get(r, h, key, typ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

func (s *Server) get(r *http.Request, h ids.Handle, key string, typ storage.ItemType) (any, error) {
	ctx := r.Context()
	switch typ {
	case storage.TypeI8:
		return s.nvs.GetI8(ctx, h, key)
	case storage.TypeU8:
		return s.nvs.GetU8(ctx, h, key)
	case storage.TypeI16:
		return s.nvs.GetI16(ctx, h, key)
	case storage.TypeU16:
		return s.nvs.GetU16(ctx, h, key)
	case storage.TypeI32:
		return s.nvs.GetI32(ctx, h, key)
	case storage.TypeU32:
		return s.nvs.GetU32(ctx, h, key)
	case storage.TypeI64:
		return s.nvs.GetI64(ctx, h, key)
	case storage.TypeU64:
		return s.nvs.GetU64(ctx, h, key)
	case storage.TypeString:
		return s.nvs.ReadString(ctx, h, key)
	}
	return nil, fmt.Errorf("%w: cannot read %s", errBadRequest, typ)
}

func (s *Server) handleSize(w http.ResponseWriter, r *http.Request) {
	h, ok := pathHandle(w, r)
	if !ok {
		return
	}
	typ, ok := queryType(w, r)
	if !ok {
		return
	}

	var size int
	var err error
	switch typ {
	case storage.TypeString:
		err = s.nvs.GetString(r.Context(), h, r.PathValue("key"), nil, &size)
	case storage.TypeBlob:
		err = s.nvs.GetBlob(r.Context(), h, r.PathValue("key"), nil, &size)
	default:
		err = fmt.Errorf("%w: size query needs str or blob, got %s", errBadRequest, typ)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"size": size})
}

func (s *Server) handleEraseKey(w http.ResponseWriter, r *http.Request) {
	h, ok := pathHandle(w, r)
	if !ok {
		return
	}
	if err := s.nvs.EraseKey(r.Context(), h, r.PathValue("key")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEraseAll(w http.ResponseWriter, r *http.Request) {
	h, ok := pathHandle(w, r)
	if !ok {
		return
	}
	if err := s.nvs.EraseAll(r.Context(), h); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.nvs.Dump(r.Context(), &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", r.Header.Get(requestIDHeader), "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, nvs.ErrInvalidHandle), errors.Is(err, nvs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, nvs.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, nvs.ErrTypeMismatch):
		return http.StatusConflict
	case errors.Is(err, nvs.ErrInvalidLength),
		errors.Is(err, nvs.ErrInvalidName),
		errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrValueTooLong),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNamespaceFull):
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}

func pathHandle(w http.ResponseWriter, r *http.Request) (ids.Handle, bool) {
	raw := r.PathValue("handle")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle "+strconv.Quote(raw))
		return 0, false
	}
	h, ok := nvsapi.HandleFromUint64(v)
	if !ok {
		writeError(w, http.StatusNotFound, nvs.ErrInvalidHandle.Error())
		return 0, false
	}
	return h, true
}

func queryType(w http.ResponseWriter, r *http.Request) (storage.ItemType, bool) {
	typ, err := storage.ParseItemType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return typ, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
