// Package config implements mount-option parsing and generation, a
// validate-then-apply runtime configuration handle, and a viper-backed
// file loader for the ambient defaults every mount starts from.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

var sizeSuffixes = map[byte]uint64{
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSize parses a binary-suffixed size string such as "128M" or
// "2048" (bytes, no suffix) into a byte count.
func ParseSize(s string) (uint64, error) {
	if s == "" {
		return 0, vexerrors.New(vexerrors.KindInvalidArgument, "empty size")
	}
	last := s[len(s)-1]
	if mult, ok := sizeSuffixes[strings.ToUpper(string(last))[0]]; ok {
		n, err := strconv.ParseUint(s[:len(s)-1], 10, 64)
		if err != nil {
			return 0, vexerrors.Wrap(vexerrors.KindInvalidArgument, "invalid size value", err)
		}
		return n * mult, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, vexerrors.Wrap(vexerrors.KindInvalidArgument, "invalid size value", err)
	}
	return n, nil
}

// FormatSize renders bytes using the largest binary suffix that divides
// it evenly, falling back to a bare byte count.
func FormatSize(bytes uint64) string {
	order := []struct {
		suffix byte
		mult   uint64
	}{
		{'T', 1 << 40},
		{'G', 1 << 30},
		{'M', 1 << 20},
		{'K', 1 << 10},
	}
	for _, o := range order {
		if bytes != 0 && bytes%o.mult == 0 {
			return fmt.Sprintf("%d%c", bytes/o.mult, o.suffix)
		}
	}
	return strconv.FormatUint(bytes, 10)
}

// ParseMountOptions parses a comma-separated option string, starting
// from the default journaling configuration and applying each
// recognized option over it. Options this parser does not recognize
// are silently ignored, since they may belong to another subsystem's
// mount-option namespace. An invalid value for a recognized key (e.g.
// "data=foo") fails with InvalidArgument.
func ParseMountOptions(s string) (types.DataJournalingConfig, error) {
	cfg := types.DefaultDataJournalingConfig()
	if strings.TrimSpace(s) == "" {
		return cfg, nil
	}
	for _, opt := range strings.Split(s, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, hasValue := strings.Cut(opt, "=")
		switch key {
		case "data":
			mode, err := parseDataMode(value)
			if err != nil {
				return types.DataJournalingConfig{}, err
			}
			cfg.Mode = mode
		case "cow":
			cfg.CowEnabled = true
		case "nocow":
			cfg.CowEnabled = false
		case "mmap":
			cfg.MmapEnabled = true
		case "nommap":
			cfg.MmapEnabled = false
		case "compress":
			cfg.DataCompressionEnabled = true
		case "nocompress":
			cfg.DataCompressionEnabled = false
		case "optimize":
			cfg.SpaceOptimizationEnabled = true
		case "nooptimize":
			cfg.SpaceOptimizationEnabled = false
		case "dynamic":
			cfg.DynamicSwitchingEnabled = true
		case "nodynamic":
			cfg.DynamicSwitchingEnabled = false
		case "max_data_journal":
			if !hasValue {
				return types.DataJournalingConfig{}, vexerrors.New(vexerrors.KindInvalidArgument, "max_data_journal requires a value")
			}
			sz, err := ParseSize(value)
			if err != nil {
				return types.DataJournalingConfig{}, err
			}
			cfg.MaxDataJournalSize = sz
		case "large_write_threshold":
			if !hasValue {
				return types.DataJournalingConfig{}, vexerrors.New(vexerrors.KindInvalidArgument, "large_write_threshold requires a value")
			}
			sz, err := ParseSize(value)
			if err != nil {
				return types.DataJournalingConfig{}, err
			}
			cfg.LargeWriteThreshold = sz
		default:
			// unrecognized option: may belong to another subsystem, ignore
		}
	}
	return cfg, nil
}

func parseDataMode(value string) (types.DataJournalingMode, error) {
	switch value {
	case "metadata_only", "metadata":
		return types.MetadataOnly, nil
	case "ordered":
		return types.OrderedData, nil
	case "journal", "full_journaling":
		return types.FullDataJournaling, nil
	default:
		return 0, vexerrors.New(vexerrors.KindInvalidArgument, fmt.Sprintf("unknown data mode %q", value))
	}
}

func dataModeOption(m types.DataJournalingMode) string {
	switch m {
	case types.MetadataOnly:
		return "metadata_only"
	case types.OrderedData:
		return "ordered"
	case types.FullDataJournaling:
		return "journal"
	default:
		return "ordered"
	}
}

// GenerateMountOptions renders cfg as a canonical, comma-separated
// option string in a fixed key order so that
// GenerateMountOptions(ParseMountOptions(s)) is idempotent regardless
// of the original string's key order.
func GenerateMountOptions(cfg types.DataJournalingConfig) string {
	var opts []string
	opts = append(opts, "data="+dataModeOption(cfg.Mode))
	opts = append(opts, boolOption(cfg.CowEnabled, "cow", "nocow"))
	opts = append(opts, boolOption(cfg.MmapEnabled, "mmap", "nommap"))
	opts = append(opts, boolOption(cfg.DataCompressionEnabled, "compress", "nocompress"))
	opts = append(opts, boolOption(cfg.SpaceOptimizationEnabled, "optimize", "nooptimize"))
	opts = append(opts, boolOption(cfg.DynamicSwitchingEnabled, "dynamic", "nodynamic"))
	opts = append(opts, "max_data_journal="+FormatSize(cfg.MaxDataJournalSize))
	opts = append(opts, "large_write_threshold="+FormatSize(cfg.LargeWriteThreshold))
	sort.Strings(opts[1:]) // keep "data=" first, canonicalize the rest
	return strings.Join(opts, ",")
}

func boolOption(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
