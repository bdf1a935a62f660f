package sample

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sondrelabs/dspcore"
)

// Decoder is the "try to open as audio stream" interface the loader speaks
// to. Audio file codecs are out of scope per spec.md §1; a host supplies a
// concrete Decoder (wrapping whatever codec library it links) and the
// loader only handles path resolution and bound application.
type Decoder interface {
	// Decode reads up to maxSamples frames (a negative bound means
	// unbounded) of audio from path into a new Sample.
	Decode(path string, maxSamples int) (*Sample, error)
}

// ArchiveResolver resolves a logical path that may refer to a member of an
// SFZ collection or a chunk of an LSPC container into a concrete path a
// Decoder can open directly. SFZ/LSPC formats are external collaborators
// per spec.md §1; dspcore only defines the resolution contract.
type ArchiveResolver interface {
	// ResolveSFZ returns the concrete audio path for path if it names an
	// SFZ collection member, or dspcore.ErrNotFound / dspcore.ErrIncompatible
	// otherwise.
	ResolveSFZ(path string) (string, error)

	// ResolveLSPC returns the concrete audio path for path if it names a
	// chunk inside an LSPC container, or dspcore.ErrNotFound /
	// dspcore.ErrIncompatible otherwise.
	ResolveLSPC(path string) (string, error)
}

// Loader populates Samples from a path, transparently treating the path as
// (a) a direct audio file, (b) an SFZ collection member, or (c) an LSPC
// container chunk, per spec.md §4.8.
type Loader struct {
	Decoder  Decoder
	Resolver ArchiveResolver
}

// LoadExt loads a sample bounded by maxDurationSeconds (negative means no
// bound), returning dspcore.ErrNotFound, dspcore.ErrIncompatible, or a
// wrapped I/O error on failure.
func (l *Loader) LoadExt(path string, maxDurationSeconds float64) (*Sample, error) {
	s, err := l.load(path, -1)
	if err != nil || maxDurationSeconds < 0 {
		return s, err
	}
	// The stream's rate is only known after decode, so the duration
	// bound is converted to frames and applied here.
	if limit := int(maxDurationSeconds * float64(s.SampleRate())); limit < s.Length() {
		if err := s.Resize(limit); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadsExt loads a sample bounded by maxSamples total frames (negative
// means no bound).
func (l *Loader) LoadsExt(path string, maxSamples int) (*Sample, error) {
	return l.load(path, maxSamples)
}

// load first tries a direct decode of path, then SFZ and then LSPC
// resolution of the full path, then walks path's ancestors from the
// deepest upward, trying SFZ and then LSPC resolution at each (there is
// no direct decode at ancestors). spec.md §9's Open Question resolves
// the SFZ-vs-LSPC order as SFZ first; this is implemented literally below
// and must not be reordered.
func (l *Loader) load(path string, maxSamples int) (*Sample, error) {
	if l.Decoder == nil {
		return nil, fmt.Errorf("%w: no decoder configured", dspcore.ErrBadState)
	}

	if s, err := l.Decoder.Decode(path, maxSamples); err == nil {
		return s, nil
	} else if err != dspcore.ErrIncompatible && err != dspcore.ErrNotFound {
		return nil, err
	}

	if l.Resolver != nil {
		if resolved, err := l.Resolver.ResolveSFZ(path); err == nil {
			return l.Decoder.Decode(resolved, maxSamples)
		}
		if resolved, err := l.Resolver.ResolveLSPC(path); err == nil {
			return l.Decoder.Decode(resolved, maxSamples)
		}
	}

	// Walk upward: the path may be <archive>/<member>, <archive>/<dir>/<member>, etc.
	dir := filepath.Dir(path)
	member := filepath.Base(path)
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		candidate := dir
		rel := member

		if l.Resolver != nil {
			if resolved, err := l.Resolver.ResolveSFZ(joinRel(candidate, rel)); err == nil {
				return l.Decoder.Decode(resolved, maxSamples)
			}
			if resolved, err := l.Resolver.ResolveLSPC(joinRel(candidate, rel)); err == nil {
				return l.Decoder.Decode(resolved, maxSamples)
			}
		}

		member = filepath.Join(filepath.Base(dir), member)
		dir = filepath.Dir(dir)
	}

	return nil, fmt.Errorf("%w: %s", dspcore.ErrNotFound, path)
}

func joinRel(dir, rel string) string {
	if strings.HasPrefix(rel, dir) {
		return rel
	}
	return filepath.Join(dir, rel)
}
