package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/api/response"
)

const openAPIMaxAge = 5 * time.Minute

// OpenAPIHandler serves the API description as JSON. info.version is set to
// the running build and the body carries an ETag for conditional requests.
type OpenAPIHandler struct {
	doc     []byte
	version string

	once sync.Once
	body []byte
	etag string
	err  error
}

// NewOpenAPIHandler creates a handler for the YAML document doc. An empty
// version keeps the version written in doc.
func NewOpenAPIHandler(doc []byte, version string) *OpenAPIHandler {
	return &OpenAPIHandler{doc: doc, version: version}
}

// ServeHTTP handles GET /openapi.json.
func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(h.render)

	if h.err != nil {
		middleware.Logger(r.Context()).Error("failed to render OpenAPI document", "error", h.err)
		response.Fail(w, response.Internal, nil, middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("ETag", h.etag)
	if r.Header.Get("If-None-Match") == h.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	response.Document(w, h.body, openAPIMaxAge)
}

func (h *OpenAPIHandler) render() {
	raw, err := yaml.YAMLToJSON(h.doc)
	if err != nil {
		h.err = fmt.Errorf("converting to JSON: %w", err)
		return
	}

	if h.version != "" {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			h.err = fmt.Errorf("decoding document: %w", err)
			return
		}
		info, _ := doc["info"].(map[string]any)
		if info == nil {
			info = map[string]any{}
			doc["info"] = info
		}
		info["version"] = h.version
		if raw, err = json.Marshal(doc); err != nil {
			h.err = fmt.Errorf("encoding document: %w", err)
			return
		}
	}

	sum := sha256.Sum256(raw)
	h.body = raw
	h.etag = `"` + hex.EncodeToString(sum[:12]) + `"`
}
