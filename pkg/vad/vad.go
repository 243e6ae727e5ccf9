// Package vad partitions canonical audio into speech segments.
//
// A detector family turns the samples into a per-window speech/silence
// Timeline; AssembleSegments then merges it into Segments using the same
// bridging and minimum-duration policy for every family. Families live in
// implementations/ and register themselves with RegisterFactory, so a
// binary selects the families it supports by importing them.
package vad

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xaionaro-go/speechseg/pkg/audio"
)

type VAD interface {
	// DetectSpeech returns the speech segments of the samples, ordered
	// by StartTime and not overlapping. The samples must be mono at
	// SampleRate(). Silent or empty input yields no segments.
	DetectSpeech(ctx context.Context, samples []float32) Segments

	Params() Params
	SampleRate() audio.SampleRate
}

type Factory interface {
	NewVAD(sampleRate audio.SampleRate, params Params) (VAD, error)
}

var (
	factoryRegistryLocker sync.Mutex
	factoryRegistry       = map[Family]Factory{}
)

func RegisterFactory(family Family, factory Factory) {
	factoryRegistryLocker.Lock()
	defer factoryRegistryLocker.Unlock()
	if _, ok := factoryRegistry[family]; ok {
		panic(fmt.Errorf("there is already registered a VAD factory for family '%s'", family))
	}
	factoryRegistry[family] = factory
}

// Families returns the families which have a registered factory.
func Families() []Family {
	factoryRegistryLocker.Lock()
	defer factoryRegistryLocker.Unlock()
	result := make([]Family, 0, len(factoryRegistry))
	for family := range factoryRegistry {
		result = append(result, family)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}

// New constructs a detector of the family of the given parameters.
func New(sampleRate audio.SampleRate, params Params) (VAD, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: parameters are not set", ErrInvalidParameters)
	}
	family := params.Family()
	factoryRegistryLocker.Lock()
	factory, ok := factoryRegistry[family]
	factoryRegistryLocker.Unlock()
	if !ok {
		return nil, fmt.Errorf("VAD family '%s' is not available (registered: %v)", family, Families())
	}
	return factory.NewVAD(sampleRate, params)
}
