package audiofile

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Kind uint

const (
	KindUndefined = Kind(iota)
	KindWAV
	KindOggVorbis
	KindRaw
	endOfKind
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "<undefined>"
	case KindWAV:
		return "wav"
	case KindOggVorbis:
		return "ogg"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("<unknown_%d>", uint(k))
	}
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := KindUndefined + 1; k < endOfKind; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindUndefined, fmt.Errorf("unknown file kind '%s'", s)
}

// Set implements pflag.Value.
func (k *Kind) Set(s string) error {
	v, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Type implements pflag.Value.
func (k *Kind) Type() string {
	return "file-kind"
}

// KindFromPath guesses the kind by the file extension. Headerless
// extensions (.raw, .pcm) map to KindRaw.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return KindWAV
	case ".ogg", ".oga":
		return KindOggVorbis
	case ".raw", ".pcm":
		return KindRaw
	default:
		return KindUndefined
	}
}
