// Package inverter extracts channel time series from Fronius solar API
// archive payloads.
//
// An archive is a JSON object keyed by device. Each device carries a "Start"
// timestamp and, somewhere below it, one object per channel whose "Values"
// map second offsets from Start to readings:
//
//	{"inverter/1": {"Start": "2024-07-09T00:00:00+02:00",
//	                "Data": {"EnergyReal_WAC_Sum_Produced": {"Values": {"0": 1.5}}}}}
package inverter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tejusbharadwaj/pvforecast/internal/series"
	"github.com/tidwall/gjson"
)

var (
	// ErrChannelNotFound is returned when a requested channel appears in no
	// device of the archive.
	ErrChannelNotFound = errors.New("channel not found in archive")

	// ErrMalformedArchive is returned for payloads that are not an archive
	// object, lack a device start time or hold non-numeric readings.
	ErrMalformedArchive = errors.New("malformed inverter archive")

	// ErrNoChannels is returned when no channel was requested.
	ErrNoChannels = errors.New("no channels requested")
)

// ExtractSeries walks the archive data object and returns one column per
// requested channel, outer-joined on timestamp in ascending order.
//
// Devices are visited in document order. Within a device the search is a
// pre-order walk in document order that stops once every channel has been
// found for that device. A channel present in several devices is merged into
// one column; on equal timestamps the later device wins. A channel requested
// twice yields two identical columns.
func ExtractSeries(data []byte, channels []string) (*series.Table, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedArchive)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: archive is not an object", ErrMalformedArchive)
	}

	unique := uniqueChannels(channels)

	var (
		found   []series.Series
		seen    = make(map[string]bool, len(channels))
		walkErr error
	)

	root.ForEach(func(deviceName, device gjson.Result) bool {
		if !device.IsObject() {
			return true
		}

		wanted := append([]string(nil), unique...)
		var (
			start    time.Time
			hasStart bool
		)

		walk(device, &wanted, func(channel string, node gjson.Result) bool {
			if !hasStart {
				var err error
				start, err = deviceStart(deviceName.String(), device)
				if err != nil {
					walkErr = err
					return false
				}
				hasStart = true
			}
			s, err := channelSeries(channel, node, start)
			if err != nil {
				walkErr = err
				return false
			}
			seen[channel] = true
			found = append(found, s)
			return true
		})

		return walkErr == nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	for _, ch := range unique {
		if !seen[ch] {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, ch)
		}
	}

	return series.Join(channels, found...), nil
}

// walk visits node in pre-order. A key matching a wanted channel is removed
// from wanted and handed to visit; the walk then continues below that key.
// It returns false once visit asks to stop.
func walk(node gjson.Result, wanted *[]string, visit func(string, gjson.Result) bool) bool {
	if !node.IsObject() {
		return true
	}

	cont := true
	node.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if i := indexOf(*wanted, k); i >= 0 {
			*wanted = append((*wanted)[:i], (*wanted)[i+1:]...)
			if !visit(k, value) {
				cont = false
				return false
			}
		}
		if len(*wanted) == 0 {
			return false
		}
		if !walk(value, wanted, visit) {
			cont = false
			return false
		}
		return true
	})
	return cont
}

func uniqueChannels(channels []string) []string {
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		if indexOf(out, ch) < 0 {
			out = append(out, ch)
		}
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func deviceStart(name string, device gjson.Result) (time.Time, error) {
	raw := device.Get("Start")
	if !raw.Exists() || raw.Type != gjson.String {
		return time.Time{}, fmt.Errorf("%w: device %s has no start time", ErrMalformedArchive, name)
	}
	start, err := time.Parse(time.RFC3339, raw.Str)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: device %s: %v", ErrMalformedArchive, name, err)
	}
	return start, nil
}

func channelSeries(channel string, node gjson.Result, start time.Time) (series.Series, error) {
	values := node.Get("Values")
	if !values.IsObject() {
		return series.Series{}, fmt.Errorf("%w: channel %s has no values", ErrMalformedArchive, channel)
	}

	s := series.Series{Name: channel}
	var err error
	values.ForEach(func(key, value gjson.Result) bool {
		offset, convErr := strconv.ParseInt(key.String(), 10, 64)
		if convErr != nil {
			err = fmt.Errorf("%w: channel %s: offset %q", ErrMalformedArchive, channel, key.String())
			return false
		}

		var v float64
		switch value.Type {
		case gjson.Number:
			v = value.Num
		case gjson.Null:
			v = math.NaN()
		default:
			err = fmt.Errorf("%w: channel %s: non-numeric reading at offset %d", ErrMalformedArchive, channel, offset)
			return false
		}

		s.Points = append(s.Points, series.Point{
			Time:  start.Add(time.Duration(offset) * time.Second),
			Value: v,
		})
		return true
	})
	return s, err
}
