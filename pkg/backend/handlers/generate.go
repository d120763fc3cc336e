package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cecil-the-coder/imagegen-kit/pkg/backend/middleware"
	"github.com/cecil-the-coder/imagegen-kit/pkg/backendtypes"
	"github.com/cecil-the-coder/imagegen-kit/pkg/dispatch"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// GenerateHandler serves image generation requests by running them through
// the dispatcher's fallback chain.
type GenerateHandler struct {
	dispatcher *dispatch.Dispatcher
	chain      []dispatch.Target
	policy     dispatch.Policy
}

func NewGenerateHandler(dispatcher *dispatch.Dispatcher, chain []dispatch.Target, policy dispatch.Policy) *GenerateHandler {
	return &GenerateHandler{
		dispatcher: dispatcher,
		chain:      chain,
		policy:     policy,
	}
}

// Generate handles POST /api/generate.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		SendError(w, r, "METHOD_NOT_ALLOWED", "Only POST is allowed", http.StatusMethodNotAllowed)
		return
	}

	var apiReq backendtypes.GenerateRequest
	if err := ParseJSON(r, &apiReq); err != nil {
		SendError(w, r, "INVALID_JSON", "Request body is not valid JSON", http.StatusBadRequest)
		return
	}

	req, err := toGenerationRequest(apiReq)
	if err != nil {
		SendError(w, r, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	chain := h.selectChain(apiReq.Backend, apiReq.Model)

	img, err := h.dispatcher.Dispatch(r.Context(), req, chain, h.policy)
	if err != nil {
		h.sendDispatchError(w, r, err)
		return
	}

	SendSuccess(w, r, backendtypes.GenerateResponse{
		ID:        img.ID,
		Image:     base64.StdEncoding.EncodeToString(img.ImageData),
		Backend:   img.Backend,
		Prompt:    img.Prompt,
		Timestamp: img.Timestamp,
		Metadata:  img.Metadata,
	})
}

// selectChain narrows the configured chain when the request pins a backend,
// and applies a per-request model override. Pinning an unconfigured backend
// still dispatches so the caller gets the factory's error back.
func (h *GenerateHandler) selectChain(backend, model string) []dispatch.Target {
	chain := h.chain
	if backend != "" {
		pinned := dispatch.Target{Name: backend}
		for _, t := range h.chain {
			if t.Name == backend {
				pinned = t
				break
			}
		}
		chain = []dispatch.Target{pinned}
	}

	if model == "" {
		return chain
	}
	overridden := make([]dispatch.Target, len(chain))
	for i, t := range chain {
		t.Config.Model = model
		overridden[i] = t
	}
	return overridden
}

func (h *GenerateHandler) sendDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		SendError(w, r, "VALIDATION_ERROR", verr.Error(), http.StatusBadRequest)
		return
	}

	var cerr *types.ConfigurationError
	if errors.As(err, &cerr) {
		SendError(w, r, "CONFIGURATION_ERROR", cerr.Error(), http.StatusBadRequest)
		return
	}

	if errors.Is(err, context.Canceled) {
		// The client went away; there is nobody left to answer.
		return
	}

	var gf *types.GenerationFailed
	if errors.As(err, &gf) {
		attempts := make([]backendtypes.AttemptInfo, len(gf.Attempts))
		for i, a := range gf.Attempts {
			attempts[i] = backendtypes.AttemptInfo{Backend: a.Backend, Error: a.Err.Error()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(backendtypes.APIResponse{
			Success: false,
			Error: &backendtypes.APIError{
				Code:    "GENERATION_FAILED",
				Message: "All backends failed to generate an image",
			},
			Data:      attempts,
			RequestID: middleware.GetRequestID(r.Context()),
			Timestamp: time.Now(),
		})
		return
	}

	SendError(w, r, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
}

// toGenerationRequest converts the wire request into a domain request with
// defaults applied. Validation proper happens in the dispatcher.
func toGenerationRequest(apiReq backendtypes.GenerateRequest) (types.GenerationRequest, error) {
	req := types.GenerationRequest{
		Prompt:         apiReq.Prompt,
		NegativePrompt: apiReq.NegativePrompt,
		Seed:           apiReq.Seed,
	}
	if apiReq.GuidanceScale != nil {
		req.GuidanceScale = *apiReq.GuidanceScale
	}
	if apiReq.InferenceSteps != nil {
		req.InferenceSteps = *apiReq.InferenceSteps
	}
	if apiReq.Width != nil {
		req.Width = *apiReq.Width
	}
	if apiReq.Height != nil {
		req.Height = *apiReq.Height
	}
	if apiReq.InitImage != "" {
		raw, err := base64.StdEncoding.DecodeString(apiReq.InitImage)
		if err != nil {
			return types.GenerationRequest{}, types.NewValidationError("init_image", "must be valid base64")
		}
		req.InitImage = raw
	}
	if apiReq.Strength != nil {
		req.Strength = *apiReq.Strength
	}
	return req.WithDefaults(), nil
}
