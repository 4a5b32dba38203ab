package engine

import (
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/pcmbridge/internal/errors"
	"github.com/tphakala/pcmbridge/internal/logging"
)

// Process-wide malgo context, shared by all streams and reference counted.
// The context hosts the engine's device enumeration and the backend device
// threads; it is torn down when the last stream releases it.
var (
	ctxMu   sync.Mutex
	ctxRefs int
	ctx     *malgo.AllocatedContext
)

// backendList maps the engine backend selection to the platform backends
// handed to malgo. The legacy backend explicitly picks the mature platform
// API; the low-level backend lets miniaudio pick the lowest-latency one.
func backendList(backend Backend) []malgo.Backend {
	switch backend {
	case BackendLegacy:
		switch runtime.GOOS {
		case "linux":
			return []malgo.Backend{malgo.BackendAlsa}
		case "windows":
			return []malgo.Backend{malgo.BackendWasapi}
		case "darwin":
			return []malgo.Backend{malgo.BackendCoreaudio}
		case "android":
			return []malgo.Backend{malgo.BackendOpensl}
		default:
			return nil
		}
	case BackendLowLevel:
		switch runtime.GOOS {
		case "android":
			return []malgo.Backend{malgo.BackendAaudio}
		case "linux":
			return []malgo.Backend{malgo.BackendJack, malgo.BackendAlsa}
		default:
			return nil
		}
	default:
		// Auto: let malgo decide.
		return nil
	}
}

// acquireContext returns the shared context, initializing it on first use.
func acquireContext(backend Backend) (*malgo.AllocatedContext, error) {
	ctxMu.Lock()
	defer ctxMu.Unlock()

	if ctxRefs == 0 {
		log := logging.ForService("engine")
		allocated, err := malgo.InitContext(backendList(backend), malgo.ContextConfig{}, func(message string) {
			if log != nil {
				log.Debug("malgo", "message", message)
			}
		})
		if err != nil {
			return nil, errors.New(err).
				Component("engine").
				Category(errors.CategoryResource).
				Context("operation", "init_context").
				Build()
		}
		ctx = allocated
	}
	ctxRefs++
	return ctx, nil
}

// releaseContext drops one reference and tears the context down when the
// last holder is gone.
func releaseContext() {
	ctxMu.Lock()
	defer ctxMu.Unlock()

	if ctxRefs == 0 {
		return
	}
	ctxRefs--
	if ctxRefs == 0 && ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
		ctx = nil
	}
}
