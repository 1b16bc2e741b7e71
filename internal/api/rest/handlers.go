package rest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	app "chip-counter/internal/application"
	"chip-counter/internal/domain/entity"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func (s *Server) httpHealth(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, MessageResponse{Message: "Chip counter API is running"})
}

func (s *Server) httpPredict(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	out, ok := s.count(w, r, false)
	if !ok {
		return
	}
	www.SendJSON(w, NewPredictResponse(out))
}

func (s *Server) httpPredictAnnotated(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	out, ok := s.count(w, r, true)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Chip-Count", strconv.Itoa(out.Result.TotalCount))
	w.Write(out.Annotated)
}

func (s *Server) httpHistory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if !s.counter.HistoryEnabled() {
		sendError(w, http.StatusNotFound, "History is disabled")
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	scans, err := s.counter.History(r.Context(), limit)
	www.Check(err)
	www.SendJSON(w, HistoryResponse{Scans: scans})
}

// count reads the uploaded image and runs it through the counting service.
// On failure it has already written the error response.
func (s *Server) count(w http.ResponseWriter, r *http.Request, annotate bool) (*app.CountOutput, bool) {
	img, err := s.readImage(w, r)
	if err == nil {
		var out *app.CountOutput
		out, err = s.counter.Count(r.Context(), app.CountRequest{Image: img, Source: "http", Annotate: annotate})
		if err == nil {
			return out, true
		}
	}
	code, msg := statusFor(err)
	if code >= 500 {
		s.log.Errorf("%v %v: %v", r.Method, r.URL.Path, err)
	} else {
		s.log.Infof("%v %v: %v", r.Method, r.URL.Path, err)
	}
	sendError(w, code, msg)
	return nil, false
}

// readImage accepts a multipart upload in field "file", or the raw image as the request body.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", entity.ErrNoImage, err)
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrNoImage, err)
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, entity.ErrNoImage
	}
	return body, nil
}
