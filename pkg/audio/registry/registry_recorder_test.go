package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

type dummyFactory struct{}

func (dummyFactory) NewRecorderPCM() (types.RecorderPCM, error) {
	return nil, nil
}

func TestRecorderBackends(t *testing.T) {
	RegisterRecorderFactory("test-low", 1, dummyFactory{})
	RegisterRecorderFactory("test-high-b", 10, dummyFactory{})
	RegisterRecorderFactory("test-high-a", 10, dummyFactory{})
	require.Panics(t, func() { RegisterRecorderFactory("test-low", 5, dummyFactory{}) })

	var names []string
	for _, backend := range RecorderBackends() {
		names = append(names, backend.Name)
	}
	require.Equal(t, []string{"test-high-a", "test-high-b", "test-low"}, names)

	backend, ok := RecorderBackendByName("test-low")
	require.True(t, ok)
	require.Equal(t, 1, backend.Priority)
	_, ok = RecorderBackendByName("missing")
	require.False(t, ok)
}
