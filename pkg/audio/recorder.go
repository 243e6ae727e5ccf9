package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/speechseg/pkg/audio/registry"
)

// Recorder is the capture source of a recording session together with the
// name of the backend it came from.
type Recorder struct {
	RecorderPCM
	BackendName string
}

var (
	lastSuccessfulBackendLocker sync.Mutex
	lastSuccessfulBackend       string
)

func openBackend(
	ctx context.Context,
	backend registry.RecorderBackend,
) (*Recorder, error) {
	recorder, err := backend.Factory.NewRecorderPCM()
	logger.Debugf(ctx, "initializing recorder backend '%s': %v", backend.Name, err)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize recorder backend '%s': %w", backend.Name, err)
	}

	err = recorder.Ping(ctx)
	logger.Debugf(ctx, "pinging recorder backend '%s': %v", backend.Name, err)
	if err != nil {
		_ = recorder.Close()
		return nil, fmt.Errorf("unable to ping recorder backend '%s': %w", backend.Name, err)
	}

	lastSuccessfulBackendLocker.Lock()
	lastSuccessfulBackend = backend.Name
	lastSuccessfulBackendLocker.Unlock()
	return &Recorder{
		RecorderPCM: recorder,
		BackendName: backend.Name,
	}, nil
}

// NewRecorderAuto returns the recorder of the highest-priority backend
// that could be initialized and pinged; the backend which worked last
// time is tried first. If none works, a dummy recorder is returned; its
// Ping fails with ErrNoRecorder.
func NewRecorderAuto(
	ctx context.Context,
) *Recorder {
	backends := registry.RecorderBackends()

	lastSuccessfulBackendLocker.Lock()
	last := lastSuccessfulBackend
	lastSuccessfulBackendLocker.Unlock()
	for idx, backend := range backends {
		if backend.Name == last && idx > 0 {
			backends = append([]registry.RecorderBackend{backend}, append(backends[:idx:idx], backends[idx+1:]...)...)
			break
		}
	}

	var mErr *multierror.Error
	for _, backend := range backends {
		recorder, err := openBackend(ctx, backend)
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		return recorder
	}

	logger.Infof(ctx, "was unable to initialize any PCM recorder: %v", mErr.ErrorOrNil())
	return &Recorder{
		RecorderPCM: RecorderPCMDummy{},
		BackendName: "dummy",
	}
}

// NewRecorderByName opens the backend registered under the name.
func NewRecorderByName(
	ctx context.Context,
	name string,
) (*Recorder, error) {
	backend, ok := registry.RecorderBackendByName(name)
	if !ok {
		var names []string
		for _, backend := range registry.RecorderBackends() {
			names = append(names, backend.Name)
		}
		return nil, fmt.Errorf("%w: backend '%s' is not compiled in (available: %v)", ErrNoRecorder, name, names)
	}
	return openBackend(ctx, backend)
}
