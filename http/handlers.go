package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aquamind/ml"
	"aquamind/potability"
)

// Handler serves the classification API over one shared classifier.
type Handler struct {
	classifier potability.Classifier
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewHandler returns a handler bound to classifier.
func NewHandler(classifier potability.Classifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		classifier: classifier,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("GET /api/features", handleFeatures)
	mux.HandleFunc("POST /api/classify", h.handleClassify)
	mux.HandleFunc("POST /api/classify/batch", h.handleClassifyBatch)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.classifier.Info())
}

func handleFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features": ml.FeatureNames(),
		"defaults": ml.DefaultSample(),
	})
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	sample, err := decodeSample(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	res := h.classifier.Classify(r.Context(), sample)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := uploadedTable(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer closeBody()

	frame, err := ml.ReadFrame(body)
	if err != nil {
		writeError(w, statusFor(err), fmt.Sprintf("invalid csv: %v", err))
		return
	}

	res := h.classifier.ClassifyBatch(r.Context(), frame)
	if res.Failed() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleClassifyStream answers each JSON sample frame with a JSON result.
func (h *Handler) handleClassifyStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(64 << 10)

	answered := 0
	defer func() {
		h.logger.Info("websocket session closed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Int("samples", answered),
			zap.Duration("duration", time.Since(GetStartTime(r.Context()))),
		)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var reply interface{}
		values := map[string]float64{}
		if err := json.Unmarshal(message, &values); err != nil {
			reply = map[string]string{"error": "invalid sample: " + err.Error()}
		} else if sample, err := ml.SampleFromMap(values); err != nil {
			reply = map[string]string{"error": err.Error()}
		} else {
			reply = h.classifier.Classify(r.Context(), sample)
		}

		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
		answered++
	}
}

type badRequest struct {
	error
}

type tooLarge struct {
	error
}

func statusFor(err error) int {
	var mbe *http.MaxBytesError
	var big tooLarge
	switch {
	case errors.As(err, &mbe), errors.As(err, &big):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

// decodeSample reads the nine readings from a JSON body or from form
// fields. Every reading is required.
func decodeSample(r *http.Request) (ml.WaterSample, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	values := map[string]float64{}

	switch mediaType {
	case "application/json", "":
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			if errors.Is(err, io.EOF) {
				return ml.WaterSample{}, badRequest{errors.New("request body is empty")}
			}
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return ml.WaterSample{}, tooLarge{err}
			}
			return ml.WaterSample{}, badRequest{fmt.Errorf("invalid json: %w", err)}
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return ml.WaterSample{}, badRequest{fmt.Errorf("invalid form: %w", err)}
		}
		for _, name := range ml.FeatureNames() {
			raw := strings.TrimSpace(r.PostFormValue(name))
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return ml.WaterSample{}, badRequest{fmt.Errorf("%s: %q is not a number", name, raw)}
			}
			values[name] = v
		}
	default:
		return ml.WaterSample{}, badRequest{fmt.Errorf("unsupported content type %q", mediaType)}
	}

	sample, err := ml.SampleFromMap(values)
	if err != nil {
		return ml.WaterSample{}, badRequest{err}
	}
	return sample, nil
}

// uploadedTable returns the CSV from a multipart "file" field or from a
// raw text/csv body.
func uploadedTable(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		file, _, err := r.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, nil, tooLarge{err}
			}
			return nil, nil, badRequest{fmt.Errorf("missing upload field \"file\": %w", err)}
		}
		return file, func() { file.Close() }, nil
	case "text/csv", "application/csv", "text/plain":
		return r.Body, func() {}, nil
	default:
		return nil, nil, badRequest{fmt.Errorf("unsupported content type %q", mediaType)}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
