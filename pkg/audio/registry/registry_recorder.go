// Package registry keeps the capture backends compiled into the binary.
// A backend registers itself from init(), so importing it is enough.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

type RecorderPCMFactory interface {
	NewRecorderPCM() (types.RecorderPCM, error)
}

type RecorderBackend struct {
	Name     string
	Priority int
	Factory  RecorderPCMFactory
}

var (
	recorderBackendsLocker sync.Mutex
	recorderBackends       = map[string]RecorderBackend{}
)

// RegisterRecorderFactory registers a backend; backends with higher
// priority are tried first by auto-selection.
func RegisterRecorderFactory(
	name string,
	priority int,
	factory RecorderPCMFactory,
) {
	recorderBackendsLocker.Lock()
	defer recorderBackendsLocker.Unlock()
	if _, ok := recorderBackends[name]; ok {
		panic(fmt.Errorf("there is already registered a recorder backend '%s'", name))
	}
	recorderBackends[name] = RecorderBackend{
		Name:     name,
		Priority: priority,
		Factory:  factory,
	}
}

// RecorderBackends returns the registered backends, the highest priority
// first; equal priorities are ordered by name.
func RecorderBackends() []RecorderBackend {
	recorderBackendsLocker.Lock()
	result := make([]RecorderBackend, 0, len(recorderBackends))
	for _, backend := range recorderBackends {
		result = append(result, backend)
	}
	recorderBackendsLocker.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func RecorderBackendByName(name string) (RecorderBackend, bool) {
	recorderBackendsLocker.Lock()
	defer recorderBackendsLocker.Unlock()
	backend, ok := recorderBackends[name]
	return backend, ok
}
