package rest

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/italolelis/epic_wallpaper/internal/cache"
	"github.com/italolelis/epic_wallpaper/internal/logctx"
	"github.com/italolelis/epic_wallpaper/internal/presenter"
	"github.com/italolelis/epic_wallpaper/internal/telemetry"
)

// Phases reported by /status.
const (
	PhaseFetching   = "fetching"
	PhasePresenting = "presenting"
	PhaseIdle       = "idle"
)

// FrameSource reports the frame currently on screen. *presenter.Presenter
// implements it.
type FrameSource interface {
	Current() (presenter.State, bool)
}

type Status struct {
	Date       string           `json:"date"`
	Collection string           `json:"collection"`
	Phase      string           `json:"phase"`
	CacheDir   string           `json:"cache_dir"`
	Frames     int              `json:"frames"`
	CacheSize  string           `json:"cache_size"`
	Uptime     string           `json:"uptime"`
	Current    *presenter.State `json:"current,omitempty"`
}

type fetchResult struct {
	frames []cache.Frame
	bytes  uint64
}

// StatusHandler serves the state of the running pipeline. The pipeline
// publishes into it with SetPhase and SetFrames.
type StatusHandler struct {
	date       string
	collection string
	cacheDir   string
	source     FrameSource
	telemetry  *telemetry.Telemetry
	started    time.Time

	phase  atomic.Value
	result atomic.Pointer[fetchResult]
}

func NewStatusHandler(date, collection, cacheDir string, source FrameSource, t *telemetry.Telemetry) *StatusHandler {
	h := &StatusHandler{
		date:       date,
		collection: collection,
		cacheDir:   cacheDir,
		source:     source,
		telemetry:  t,
		started:    time.Now(),
	}
	h.phase.Store(PhaseFetching)

	return h
}

func (h *StatusHandler) SetPhase(phase string) {
	h.phase.Store(phase)
}

// SetFrames publishes the frames produced by a fetch.
func (h *StatusHandler) SetFrames(frames []cache.Frame) {
	var total uint64
	for _, f := range frames {
		total += uint64(f.Size)
	}

	h.result.Store(&fetchResult{frames: append([]cache.Frame(nil), frames...), bytes: total})
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(h.telemetry).Middleware)

	r.Get("/healthz", h.HandleHealth)
	r.Get("/status", h.HandleStatus)
	r.Get("/frames/current", h.HandleCurrentFrame)
	r.Method(http.MethodGet, "/metrics", h.telemetry.Handler())

	return r
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	status := Status{
		Date:       h.date,
		Collection: h.collection,
		Phase:      h.phase.Load().(string),
		CacheDir:   h.cacheDir,
		CacheSize:  humanize.Bytes(0),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
	}

	if res := h.result.Load(); res != nil {
		status.Frames = len(res.frames)
		status.CacheSize = humanize.Bytes(res.bytes)
	}

	if h.source != nil {
		if current, ok := h.source.Current(); ok {
			status.Current = &current
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger.Error("failed to encode status", "err", err)
	}
}

// HandleCurrentFrame serves the image on screen.
func (h *StatusHandler) HandleCurrentFrame(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		http.Error(w, "no frame presented yet", http.StatusNotFound)

		return
	}

	current, ok := h.source.Current()
	if !ok {
		http.Error(w, "no frame presented yet", http.StatusNotFound)

		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, current.Path)
}
