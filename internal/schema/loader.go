package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidOffset     = errors.New("schema: offset out of range")
	ErrDuplicateTypeCode = errors.New("schema: duplicate type code")
	ErrNotLoaded         = errors.New("schema: registry was never loaded from files")
)

// LoadTable reads the offsets table (name -> []int) and the indexes table
// (name -> int) from JSON files. A missing file contributes an empty half and
// a warning; malformed content is an error.
func LoadTable(logger zerolog.Logger, offsetsPath, indexesPath string) (*Table, error) {
	offsets, err := readOffsets(logger, offsetsPath)
	if err != nil {
		return nil, err
	}

	codes, err := readIndexes(logger, indexesPath)
	if err != nil {
		return nil, err
	}

	return NewTable(offsets, codes)
}

// ParseOffsets decodes an offsets document.
func ParseOffsets(data []byte) (map[string][]byte, error) {
	var raw map[string][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse offsets: %w", err)
	}

	out := make(map[string][]byte, len(raw))
	for name, values := range raw {
		offs := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: %s[%d] = %d", ErrInvalidOffset, name, i, v)
			}
			offs[i] = byte(v)
		}
		out[name] = offs
	}
	return out, nil
}

// ParseIndexes decodes an indexes (type code) document.
func ParseIndexes(data []byte) (map[string]int, error) {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse indexes: %w", err)
	}
	return raw, nil
}

func readOffsets(logger zerolog.Logger, path string) (map[string][]byte, error) {
	data, ok, err := readOptional(logger, path, "offsets")
	if err != nil || !ok {
		return map[string][]byte{}, err
	}
	offsets, err := ParseOffsets(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return offsets, nil
}

func readIndexes(logger zerolog.Logger, path string) (map[string]int, error) {
	data, ok, err := readOptional(logger, path, "indexes")
	if err != nil || !ok {
		return map[string]int{}, err
	}
	codes, err := ParseIndexes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return codes, nil
}

func readOptional(logger zerolog.Logger, path, what string) ([]byte, bool, error) {
	if path == "" {
		logger.Warn().Str("table", what).Msg("no schema file configured, using empty table")
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("table", what).Str("path", path).Msg("schema file not found, using empty table")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s file %s: %w", what, path, err)
	}
	return data, true, nil
}
