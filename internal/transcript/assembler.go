// Package transcript folds an ordered stream of recognition results into a
// canonical (interim, final) transcript pair.
package transcript

import "github.com/ainotetaker/transcription-gateway/internal/stt"

// Snapshot is the assembler's visible state after applying a result.
// Final is the full cumulative transcript, never a diff, so consumers can
// always render the latest snapshot without merge logic.
type Snapshot struct {
	Interim      string
	Final        string
	Speaker      *int
	SpeakerCount int
	WordCount    int
}

// Assembler accumulates recognition results for one session. It is not safe
// for concurrent use; the owning session serializes all calls.
//
// Invariants:
//   - Final only ever grows by appending segments, never shrinks or reorders.
//   - Interim holds at most one pending string and is fully replaced by each
//     interim result (the engine's evolving guess at the same utterance).
//   - A final result clears Interim, even when its interim was never seen.
type Assembler struct {
	interim       string
	final         string
	speaker       *int
	speakerCount  int
	lastWordCount int
}

// New creates an empty assembler
func New() *Assembler {
	return &Assembler{}
}

// Apply folds one recognition result into the transcript and returns the
// resulting snapshot. Results must be applied strictly in arrival order.
func (a *Assembler) Apply(res stt.Result) Snapshot {
	if res.Speaker != nil {
		v := *res.Speaker
		a.speaker = &v
		// Speaker ids are zero-based, so the high-water count is id+1
		if v+1 > a.speakerCount {
			a.speakerCount = v + 1
		}
	}

	a.lastWordCount = res.WordCount

	if res.IsFinal {
		// Empty finals are accepted but append nothing
		if res.Text != "" {
			if a.final == "" {
				a.final = res.Text
			} else {
				a.final += " " + res.Text
			}
		}
		a.interim = ""
	} else {
		a.interim = res.Text
	}

	return a.Snapshot()
}

// Snapshot returns the current visible state
func (a *Assembler) Snapshot() Snapshot {
	var speaker *int
	if a.speaker != nil {
		v := *a.speaker
		speaker = &v
	}
	return Snapshot{
		Interim:      a.interim,
		Final:        a.final,
		Speaker:      speaker,
		SpeakerCount: a.speakerCount,
		WordCount:    a.lastWordCount,
	}
}

// Final returns the cumulative final transcript
func (a *Assembler) Final() string {
	return a.final
}

// Interim returns the pending interim text, if any
func (a *Assembler) Interim() string {
	return a.interim
}

// SpeakerCount returns the distinct-speaker high-water mark
func (a *Assembler) SpeakerCount() int {
	return a.speakerCount
}
