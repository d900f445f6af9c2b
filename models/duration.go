package models

import (
	"bytes"
	"strconv"
	"time"

	"github.com/karrick/tparse/v2"
)

// Duration reads "90s", "10m", "1h30m", "2d" or a plain number of seconds
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

func ParseDuration(value string) (Duration, error) {
	if value == "" {
		return Duration{}, nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return Duration{time.Duration(seconds * float64(time.Second))}, nil
	}
	base := time.Unix(0, 0).UTC()
	until, err := tparse.AddDuration(base, value)
	if err != nil {
		return Duration{}, err
	}
	return Duration{until.Sub(base)}, nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.Duration.String())), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	value := string(data)
	if len(data) > 0 && data[0] == '"' {
		unquoted, err := strconv.Unquote(value)
		if err != nil {
			return err
		}
		value = unquoted
	}
	parsed, err := ParseDuration(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
