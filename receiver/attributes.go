package receiver

import (
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/exp/slices"
)

// Names of critical CBF attributes
const (
	AttrAdcSampleRate        = "adc_sample_rate"
	AttrNumChans             = "n_chans"
	AttrNumAccs              = "n_accs"
	AttrBlsOrdering          = "bls_ordering"
	AttrBandwidth            = "bandwidth"
	AttrCenterFreq           = "center_freq"
	AttrSyncTime             = "sync_time"
	AttrIntTime              = "int_time"
	AttrScaleFactorTimestamp = "scale_factor_timestamp"
	AttrTicksBetweenSpectra  = "ticks_between_spectra"
	AttrNumChansPerSubstream = "n_chans_per_substream"
)

// CriticalAttributeNames lists all attributes required before any data can be interpreted
var CriticalAttributeNames = []string{
	AttrAdcSampleRate,
	AttrNumChans,
	AttrNumAccs,
	AttrBlsOrdering,
	AttrBandwidth,
	AttrCenterFreq,
	AttrSyncTime,
	AttrIntTime,
	AttrScaleFactorTimestamp,
	AttrTicksBetweenSpectra,
	AttrNumChansPerSubstream,
}

// CriticalAttributes contains CBF metadata required to interpret data heaps, nil for missing ones
//
// A CriticalAttributes returned by Receiver is a snapshot and must not be modified.
type CriticalAttributes struct {
	AdcSampleRate        *float64    `yaml:"adc_sample_rate,omitempty"`
	NumChans             *int64      `yaml:"n_chans,omitempty"`
	NumAccs              *int64      `yaml:"n_accs,omitempty"`
	BlsOrdering          *[][]string `yaml:"bls_ordering,omitempty"`
	Bandwidth            *float64    `yaml:"bandwidth,omitempty"`
	CenterFreq           *float64    `yaml:"center_freq,omitempty"`
	SyncTime             *float64    `yaml:"sync_time,omitempty"`
	IntTime              *float64    `yaml:"int_time,omitempty"`
	ScaleFactorTimestamp *float64    `yaml:"scale_factor_timestamp,omitempty"`
	TicksBetweenSpectra  *int64      `yaml:"ticks_between_spectra,omitempty"`
	NumChansPerSubstream *int64      `yaml:"n_chans_per_substream,omitempty"`
}

// IsCritical checks whether the given metadata name is a critical attribute
func IsCritical(name string) bool {
	return slices.Contains(CriticalAttributeNames, name)
}

// Missing lists the names of attributes not yet set
func (attrs CriticalAttributes) Missing() []string {
	missing := make([]string, 0, len(CriticalAttributeNames))
	for _, name := range CriticalAttributeNames {
		if !attrs.isSet(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// IsComplete checks whether all attributes are set
func (attrs CriticalAttributes) IsComplete() bool {
	for _, name := range CriticalAttributeNames {
		if !attrs.isSet(name) {
			return false
		}
	}
	return true
}

// Interval returns the timestamp difference between consecutive dumps, or 0 if unknown
func (attrs CriticalAttributes) Interval() uint64 {
	if attrs.TicksBetweenSpectra == nil || attrs.NumAccs == nil {
		return 0
	}
	return uint64(*attrs.TicksBetweenSpectra) * uint64(*attrs.NumAccs)
}

// TimestampToTime converts a corrected timestamp into wall-clock time, or zero time if sync information is missing
func (attrs CriticalAttributes) TimestampToTime(timestamp uint64) time.Time {
	if attrs.SyncTime == nil || attrs.ScaleFactorTimestamp == nil || *attrs.ScaleFactorTimestamp <= 0 {
		return time.Time{}
	}
	seconds := *attrs.SyncTime + float64(timestamp) / *attrs.ScaleFactorTimestamp
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// NumBaselines returns the number of correlation products, or 0 if unknown
func (attrs CriticalAttributes) NumBaselines() int {
	if attrs.BlsOrdering == nil {
		return 0
	}
	return len(*attrs.BlsOrdering)
}

func (attrs *CriticalAttributes) isSet(name string) bool {
	switch name {
	case AttrAdcSampleRate:
		return attrs.AdcSampleRate != nil
	case AttrNumChans:
		return attrs.NumChans != nil
	case AttrNumAccs:
		return attrs.NumAccs != nil
	case AttrBlsOrdering:
		return attrs.BlsOrdering != nil
	case AttrBandwidth:
		return attrs.Bandwidth != nil
	case AttrCenterFreq:
		return attrs.CenterFreq != nil
	case AttrSyncTime:
		return attrs.SyncTime != nil
	case AttrIntTime:
		return attrs.IntTime != nil
	case AttrScaleFactorTimestamp:
		return attrs.ScaleFactorTimestamp != nil
	case AttrTicksBetweenSpectra:
		return attrs.TicksBetweenSpectra != nil
	case AttrNumChansPerSubstream:
		return attrs.NumChansPerSubstream != nil
	default:
		return false
	}
}

type mergeResult int

const (
	mergeIgnored   mergeResult = iota // not a critical attribute
	mergeApplied                      // set for the first time
	mergeUnchanged                    // same value as existing
	mergeConflict                     // different from existing, not applied
)

// merge sets the attribute if it's not set yet
func (attrs *CriticalAttributes) merge(name string, rawValue interface{}) (mergeResult, error) {
	switch name {
	case AttrAdcSampleRate:
		return mergeField(&attrs.AdcSampleRate, rawValue, cast.ToFloat64E)
	case AttrNumChans:
		return mergeField(&attrs.NumChans, rawValue, toPositiveInt64)
	case AttrNumAccs:
		return mergeField(&attrs.NumAccs, rawValue, toPositiveInt64)
	case AttrBlsOrdering:
		return mergeField(&attrs.BlsOrdering, rawValue, toBaselinePairs)
	case AttrBandwidth:
		return mergeField(&attrs.Bandwidth, rawValue, cast.ToFloat64E)
	case AttrCenterFreq:
		return mergeField(&attrs.CenterFreq, rawValue, cast.ToFloat64E)
	case AttrSyncTime:
		return mergeField(&attrs.SyncTime, rawValue, cast.ToFloat64E)
	case AttrIntTime:
		return mergeField(&attrs.IntTime, rawValue, cast.ToFloat64E)
	case AttrScaleFactorTimestamp:
		return mergeField(&attrs.ScaleFactorTimestamp, rawValue, cast.ToFloat64E)
	case AttrTicksBetweenSpectra:
		return mergeField(&attrs.TicksBetweenSpectra, rawValue, toPositiveInt64)
	case AttrNumChansPerSubstream:
		return mergeField(&attrs.NumChansPerSubstream, rawValue, toPositiveInt64)
	default:
		return mergeIgnored, nil
	}
}

func mergeField[T any](field **T, rawValue interface{}, convert func(interface{}) (T, error)) (mergeResult, error) {
	value, err := convert(rawValue)
	if err != nil {
		return mergeIgnored, err
	}
	if *field == nil {
		*field = &value
		return mergeApplied, nil
	}
	if reflect.DeepEqual(**field, value) {
		return mergeUnchanged, nil
	}
	return mergeConflict, nil
}

func toPositiveInt64(rawValue interface{}) (int64, error) {
	value, err := cast.ToInt64E(rawValue)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("non-positive value %d", value)
	}
	return value, nil
}

// toBaselinePairs converts nested lists such as [[m000h, m000h], [m000h, m001v]] into pairs of input names
func toBaselinePairs(rawValue interface{}) ([][]string, error) {
	list, err := cast.ToSliceE(rawValue)
	if err != nil {
		// cast only handles []interface{} and []map; try typed slices by reflection
		rv := reflect.ValueOf(rawValue)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, err
		}
		list = make([]interface{}, rv.Len())
		for i := range list {
			list[i] = rv.Index(i).Interface()
		}
	}
	pairs := make([][]string, len(list))
	for i, rawPair := range list {
		pair, perr := cast.ToStringSliceE(rawPair)
		if perr != nil {
			return nil, fmt.Errorf("baseline[%d]: %w", i, perr)
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("baseline[%d]: expected 2 inputs, got %d", i, len(pair))
		}
		pairs[i] = pair
	}
	return pairs, nil
}

// attributeSet is the shared and guarded CriticalAttributes of a Receiver
type attributeSet struct {
	mutex  sync.RWMutex
	values CriticalAttributes
	frozen bool
}

// Merge sets the attribute if it's not set yet, unless frozen
func (set *attributeSet) Merge(name string, rawValue interface{}) (mergeResult, error) {
	set.mutex.Lock()
	defer set.mutex.Unlock()
	if set.frozen {
		probe := set.values
		result, err := probe.merge(name, rawValue)
		if result == mergeApplied {
			return mergeIgnored, err
		}
		return result, err
	}
	return set.values.merge(name, rawValue)
}

// Freeze makes the attributes unmodifiable
func (set *attributeSet) Freeze() {
	set.mutex.Lock()
	defer set.mutex.Unlock()
	set.frozen = true
}

// Snapshot returns the current attributes
func (set *attributeSet) Snapshot() CriticalAttributes {
	set.mutex.RLock()
	defer set.mutex.RUnlock()
	return set.values
}

// Missing lists the names of attributes not yet set
func (set *attributeSet) Missing() []string {
	set.mutex.RLock()
	defer set.mutex.RUnlock()
	return set.values.Missing()
}
