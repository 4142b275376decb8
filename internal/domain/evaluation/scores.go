package evaluation

import (
	"fmt"
	"math"
	"strings"
)

// Score bounds, inclusive.
const (
	MinScore = 0
	MaxScore = 100
)

// Mode selects how submitted notes become sub-scores.
type Mode string

const (
	// ModeSingle copies one note into every sub-score and the total.
	ModeSingle Mode = "single"
	// ModeAverage takes three independent sub-scores; the total is their mean.
	ModeAverage Mode = "average"
)

// ParseMode canonicalizes a score mode label.
func ParseMode(value string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeSingle:
		return ModeSingle, true
	case ModeAverage:
		return ModeAverage, true
	default:
		return "", false
	}
}

// Input is what a judge submits. Nil fields were not supplied.
type Input struct {
	Note         *float64
	Technical    *float64
	Artistic     *float64
	Presentation *float64
}

// Scores are the normalized sub-scores and their combination.
type Scores struct {
	Technical    float64
	Artistic     float64
	Presentation float64
	Total        float64
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithMode sets the combination mode.
func WithMode(mode Mode) Option {
	return func(s *Scorer) {
		if _, ok := ParseMode(string(mode)); ok {
			s.mode = mode
		}
	}
}

// Scorer validates judge input and derives sub-scores and the total.
type Scorer struct {
	mode Mode
}

// NewScorer creates a scorer. The default mode is ModeSingle.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{mode: ModeSingle}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the configured mode.
func (s *Scorer) Mode() Mode { return s.mode }

// Score validates in and combines it according to the mode.
func (s *Scorer) Score(in Input) (Scores, error) {
	if s.mode == ModeAverage {
		return s.average(in)
	}
	return s.single(in)
}

func (s *Scorer) single(in Input) (Scores, error) {
	note := in.Note
	if note == nil {
		// A lone technical score is accepted as the note.
		if in.Technical == nil || in.Artistic != nil || in.Presentation != nil {
			return Scores{}, fmt.Errorf("%w: note is required", ErrInvalidScore)
		}
		note = in.Technical
	}
	if err := checkRange("note", *note); err != nil {
		return Scores{}, err
	}
	return Scores{Technical: *note, Artistic: *note, Presentation: *note, Total: *note}, nil
}

func (s *Scorer) average(in Input) (Scores, error) {
	if in.Technical == nil || in.Artistic == nil || in.Presentation == nil {
		if in.Note != nil && in.Technical == nil && in.Artistic == nil && in.Presentation == nil {
			return s.single(in)
		}
		return Scores{}, fmt.Errorf("%w: technical, artistic and presentation are required", ErrInvalidScore)
	}
	if err := checkRange("technical", *in.Technical); err != nil {
		return Scores{}, err
	}
	if err := checkRange("artistic", *in.Artistic); err != nil {
		return Scores{}, err
	}
	if err := checkRange("presentation", *in.Presentation); err != nil {
		return Scores{}, err
	}
	return Scores{
		Technical:    *in.Technical,
		Artistic:     *in.Artistic,
		Presentation: *in.Presentation,
		Total:        Round2((*in.Technical + *in.Artistic + *in.Presentation) / 3),
	}, nil
}

func checkRange(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinScore || v > MaxScore {
		return fmt.Errorf("%w: %s %v outside [%d, %d]", ErrInvalidScore, name, v, MinScore, MaxScore)
	}
	return nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
