package synth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dewi-tim/sasmux/internal/errs"
)

const (
	// DefaultConfig is the engine configuration used when none is given.
	DefaultConfig = "numGrains=256 numVoices=32 numReverbs=1 outputMode=0"

	GrainMax  = 2048
	GrainUnit = 64
	VoiceMax  = 32

	OutputStereo = 0
	OutputMulti  = 1
)

// Config is a parsed engine configuration string.
type Config struct {
	Grains     int
	Voices     int
	Reverbs    int
	OutputMode int
}

// ParseConfig parses space separated key=value pairs. Missing keys keep
// their DefaultConfig values; an empty string is the default configuration.
func ParseConfig(s string) (Config, error) {
	const op = "synth.ParseConfig"

	cfg := Config{Grains: 256, Voices: VoiceMax, Reverbs: 1, OutputMode: OutputStereo}
	for _, field := range strings.Fields(s) {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return Config{}, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "malformed pair %q", field)
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return Config{}, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "%s: %v", key, err)
		}
		switch key {
		case "numGrains":
			cfg.Grains = n
		case "numVoices":
			cfg.Voices = n
		case "numReverbs":
			cfg.Reverbs = n
		case "outputMode":
			cfg.OutputMode = n
		default:
			return Config{}, errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "unknown key %q", key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	const op = "synth.Config"
	switch {
	case c.Grains <= 0 || c.Grains > GrainMax || c.Grains%GrainUnit != 0:
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidGrain, "numGrains %d", c.Grains)
	case c.Voices <= 0 || c.Voices > VoiceMax:
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidVoice, "numVoices %d", c.Voices)
	case c.Reverbs < 0 || c.Reverbs > 1:
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "numReverbs %d", c.Reverbs)
	case c.OutputMode != OutputStereo:
		return errs.New(errs.KindConfiguration, op, errs.CodeInvalidParameter, "outputMode %d not supported", c.OutputMode)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("numGrains=%d numVoices=%d numReverbs=%d outputMode=%d", c.Grains, c.Voices, c.Reverbs, c.OutputMode)
}

// NeededMemorySize is the size of the memory New needs for cfg: the int32
// stereo accumulator for the largest grain.
func NeededMemorySize(cfg Config) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	return cfg.Grains * 2 * 4, nil
}
