// Package all registers every detector family of this module.
package all

import (
	_ "github.com/xaionaro-go/speechseg/pkg/vad/implementations/adaptive"
	_ "github.com/xaionaro-go/speechseg/pkg/vad/implementations/energy"
	_ "github.com/xaionaro-go/speechseg/pkg/vad/implementations/spectral"
	_ "github.com/xaionaro-go/speechseg/pkg/vad/implementations/webrtc"
)
