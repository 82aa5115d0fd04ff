package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"diffusiond/internal/engine"
	"diffusiond/internal/filters"
	"diffusiond/internal/imaging"
	"diffusiond/internal/manager"
	"diffusiond/pkg/types"
)

// handleTxt2Img godoc
// @Summary Generate images from a text prompt
// @Accept json
// @Produce json
// @Param request body types.GenerateRequest true "generation parameters"
// @Success 200 {object} types.GenerateResponse
// @Failure 404 {object} types.ErrorResponse "checkpoint not found"
// @Failure 503 {object} types.ErrorResponse "diffusion runtime unavailable"
// @Router /v1/sdapi/v1/txt2img [post]
func (s *server) handleTxt2Img(w http.ResponseWriter, r *http.Request) {
	s.handleGenerate(w, r, false)
}

// handleImg2Img godoc
// @Summary Generate images from an init image plus prompt
// @Accept json
// @Produce json
// @Param request body types.GenerateRequest true "generation parameters with init_images"
// @Success 200 {object} types.GenerateResponse
// @Router /v1/sdapi/v1/img2img [post]
func (s *server) handleImg2Img(w http.ResponseWriter, r *http.Request) {
	s.handleGenerate(w, r, true)
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request, edit bool) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if edit && (len(req.InitImages) == 0 || req.InitImages[0] == "") {
		writeJSONError(w, http.StatusBadRequest, "init_images is required")
		return
	}

	params, err := s.buildParams(req, edit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	taskID := req.ForceTaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	s.deps.Tasks.Create(taskID)
	stop := s.watchDisconnect(r.Context(), taskID)
	defer stop()

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelInfo {
		if zlog != nil {
			z := zlog.Info().Str("path", r.URL.Path).Str("task", taskID)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("generation request")
		} else {
			log.Printf("generation request path=%s task=%s", r.URL.Path, taskID)
		}
	}

	images, err := s.deps.Manager.Generate(params, taskID)
	if err != nil {
		info := errorInfo(err)
		// the task never stays in-progress: errors complete it with an
		// error payload so pollers see a terminal state
		s.deps.Tasks.Complete(taskID, nil, info)
		s.logGenerationEnd(r, lvl, taskID, start, err)
		if manager.IsInterrupted(err) {
			// client-initiated stop is not a failure
			writeJSON(w, types.GenerateResponse{Images: []string{}, Info: info})
			return
		}
		writeJSONError(w, statusForError(err), err.Error())
		return
	}

	format := s.deps.Options.Snapshot().SamplesFormat
	encoded := make([]string, len(images))
	for i, img := range images {
		blob, err := imaging.Encode(img, format)
		if err != nil {
			// partial failure: the slot stays empty, the batch survives
			if zlog != nil {
				zlog.Warn().Str("task", taskID).Int("index", i).Err(err).Msg("result encode failed")
			}
			continue
		}
		encoded[i] = blob
	}

	info := buildInfo(req, params)
	s.deps.Tasks.Complete(taskID, encoded, info)
	s.logGenerationEnd(r, lvl, taskID, start, nil)
	writeJSON(w, types.GenerateResponse{Images: encoded, Info: info})
}

func (s *server) logGenerationEnd(r *http.Request, lvl LogLevel, taskID string, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Str("task", taskID).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("generation response")
		return
	}
	log.Printf("generation response task=%s dur=%s err=%v", taskID, time.Since(start), err)
}

// buildParams applies wire defaults and decodes edit inputs. Width and
// height fall back to the init image's size for edits, 512 otherwise; edit
// inputs are resized to the (8-aligned) target before the engine sees them.
func (s *server) buildParams(req types.GenerateRequest, edit bool) (engine.GenerateParams, error) {
	p := engine.GenerateParams{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		CfgScale:       req.CfgScale,
		BatchCount:     req.BatchSize,
		SamplerName:    req.SamplerName,
		ClipSkip:       req.ClipSkip,
	}
	// the wire format cannot distinguish "seed 0" from "no seed"; 0 means
	// pick one, matching the established client behavior
	p.Seed = req.Seed
	if p.Seed == 0 {
		p.Seed = -1
	}
	if p.CfgScale <= 0 {
		p.CfgScale = 7.0
	}
	if p.ClipSkip == 0 {
		p.ClipSkip = s.deps.Options.Snapshot().ClipSkip
	}

	if !edit {
		if p.Width <= 0 {
			p.Width = 512
		}
		if p.Height <= 0 {
			p.Height = 512
		}
		return p, nil
	}

	init, err := imaging.Decode(req.InitImages[0], 3)
	if err != nil {
		return p, err
	}
	if p.Width <= 0 {
		p.Width = init.Width
	}
	if p.Height <= 0 {
		p.Height = init.Height
	}
	init, err = imaging.Resize(init, p.Width, p.Height, true)
	if err != nil {
		return p, err
	}
	p.Width, p.Height = init.Width, init.Height
	p.InitImage = init

	if req.Mask != "" {
		mask, err := imaging.Decode(req.Mask, 1)
		if err != nil {
			return p, err
		}
		mask, err = imaging.Resize(mask, p.Width, p.Height, true)
		if err != nil {
			return p, err
		}
		p.MaskImage = mask
	}

	p.Strength = req.DenoisingStrength
	if p.Strength <= 0 {
		p.Strength = 0.75
	}
	return p, nil
}

// buildInfo serializes the effective generation parameters, echoed in the
// response and stored on the completed task.
func buildInfo(req types.GenerateRequest, p engine.GenerateParams) string {
	b, err := json.Marshal(map[string]any{
		"prompt":          p.Prompt,
		"negative_prompt": p.NegativePrompt,
		"width":           p.Width,
		"height":          p.Height,
		"steps":           p.Steps,
		"cfg_scale":       p.CfgScale,
		"seed":            p.Seed,
		"batch_size":      p.BatchCount,
		"sampler_name":    p.SamplerName,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func errorInfo(err error) string {
	b, merr := json.Marshal(map[string]any{
		"error":       err.Error(),
		"interrupted": manager.IsInterrupted(err),
	})
	if merr != nil {
		return "{}"
	}
	return string(b)
}

// handleProgress godoc
// @Summary Poll task progress and live preview
// @Accept json
// @Produce json
// @Param request body types.ProgressRequest true "task selector"
// @Success 200 {object} types.ProgressResponse
// @Failure 404 {object} types.ErrorResponse "unknown task"
// @Router /v1/internal/progress [post]
func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req types.ProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IDTask == "" {
		writeJSONError(w, http.StatusBadRequest, "id_task is required")
		return
	}
	if !s.deps.Tasks.Exists(req.IDTask) {
		writeJSONError(w, http.StatusNotFound, "unknown task: "+req.IDTask)
		return
	}
	snap := s.deps.Tasks.Snapshot(req.IDTask)
	resp := types.ProgressResponse{
		Completed:     snap.Completed,
		Progress:      snap.Progress,
		IDLivePreview: snap.PreviewRevision,
	}
	// send the preview only when the poller's revision is stale
	if snap.PreviewRevision > req.IDLivePreview {
		resp.LivePreview = snap.LivePreview
	}
	writeJSON(w, resp)
}

// handleExtraBatchImages godoc
// @Summary Upscale a batch of images
// @Accept json
// @Produce json
// @Param request body types.UpscaleRequest true "images and upscaler selection"
// @Success 200 {object} types.UpscaleResponse
// @Failure 404 {object} types.ErrorResponse "upscaler model not found"
// @Router /v1/sdapi/v1/extra-batch-images [post]
func (s *server) handleExtraBatchImages(w http.ResponseWriter, r *http.Request) {
	var req types.UpscaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.ImageList) == 0 {
		writeJSONError(w, http.StatusBadRequest, "imageList is required")
		return
	}
	items := make([]filters.Item, len(req.ImageList))
	for i, img := range req.ImageList {
		items[i] = filters.Item{Data: img.Data, Name: img.Name}
	}
	format := s.deps.Options.Snapshot().SamplesFormat
	out, err := s.deps.Filters.UpscaleBatch(items, req.Upscaler1, req.UpscalingResize, format)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, types.UpscaleResponse{Images: out})
}
