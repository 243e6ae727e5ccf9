package audio

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/audio/registry"
)

type fakeRecorder struct {
	pingErr error
	closed  bool
}

func (r *fakeRecorder) Close() error {
	r.closed = true
	return nil
}
func (r *fakeRecorder) Ping(context.Context) error                     { return r.pingErr }
func (r *fakeRecorder) CheckFormat(SampleRate, Channel, PCMFormat) error { return nil }
func (r *fakeRecorder) RecordPCM(context.Context, SampleRate, Channel, PCMFormat, io.Writer) (RecordStream, error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	recorder *fakeRecorder
	err      error
}

func (f fakeFactory) NewRecorderPCM() (RecorderPCM, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recorder, nil
}

func TestNewRecorder(t *testing.T) {
	ctx := context.Background()

	broken := &fakeRecorder{pingErr: errors.New("no device")}
	working := &fakeRecorder{}
	registry.RegisterRecorderFactory("test-unloadable", 1003, fakeFactory{err: errors.New("no library")})
	registry.RegisterRecorderFactory("test-broken", 1002, fakeFactory{recorder: broken})
	registry.RegisterRecorderFactory("test-working", 1001, fakeFactory{recorder: working})

	recorder := NewRecorderAuto(ctx)
	require.Equal(t, "test-working", recorder.BackendName)
	require.Same(t, working, recorder.RecorderPCM)
	require.True(t, broken.closed)

	recorder, err := NewRecorderByName(ctx, "test-working")
	require.NoError(t, err)
	require.Same(t, working, recorder.RecorderPCM)

	_, err = NewRecorderByName(ctx, "test-broken")
	require.Error(t, err)

	_, err = NewRecorderByName(ctx, "missing")
	require.ErrorIs(t, err, ErrNoRecorder)
}

func TestRecorderDummy(t *testing.T) {
	ctx := context.Background()
	var r RecorderPCM = RecorderPCMDummy{}
	require.ErrorIs(t, r.Ping(ctx), ErrNoRecorder)
	require.ErrorIs(t, r.CheckFormat(16000, 1, PCMFormatS16LE), ErrNoRecorder)
	_, err := r.RecordPCM(ctx, 16000, 1, PCMFormatS16LE, io.Discard)
	require.ErrorIs(t, err, ErrNoRecorder)
}
