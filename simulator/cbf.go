// Package simulator generates CBF heap streams for testing and demonstration
package simulator

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/samber/lo"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Params defines the simulated correlator
type Params struct {
	NumStreams          int     `yaml:"numStreams"`          // number of substreams (endpoints)
	NumChannels         int     `yaml:"numChannels"`         // total channels of all substreams
	XengsPerStream      int     `yaml:"xengsPerStream"`      // X-engines (data heaps per dump) per substream
	NumAntennas         int     `yaml:"numAntennas"`         // dual-polarised antennas
	NumAccs             int     `yaml:"numAccs"`             // spectra accumulated per dump
	TicksBetweenSpectra int     `yaml:"ticksBetweenSpectra"` // ADC samples between spectra
	AdcSampleRate       float64 `yaml:"adcSampleRate"`       // also used as timestamp scale factor
	CenterFreq          float64 `yaml:"centerFreq"`
	SyncTime            float64 `yaml:"syncTime"`       // unix time of timestamp zero
	FirstTimestamp      uint64  `yaml:"firstTimestamp"` // raw timestamp of the first dump, wrapped at 48 bits
	Legacy              bool    `yaml:"legacy"`         // omit frequency item; requires a single X-engine per stream
	DropRate            float64 `yaml:"dropRate"`       // fraction of data heaps randomly left out
	Seed                int64   `yaml:"seed"`
}

// DefaultParams returns a small correlator of 4 substreams
func DefaultParams() Params {
	return Params{
		NumStreams:          4,
		NumChannels:         1024,
		XengsPerStream:      2,
		NumAntennas:         4,
		NumAccs:             256,
		TicksBetweenSpectra: 2048,
		AdcSampleRate:       1712e6,
		CenterFreq:          1284e6,
		SyncTime:            1500000000,
	}
}

// Verify checks parameters
func (params Params) Verify() error {
	switch {
	case params.NumStreams <= 0:
		return fmt.Errorf("numStreams must be positive")
	case params.XengsPerStream <= 0:
		return fmt.Errorf("xengsPerStream must be positive")
	case params.NumChannels <= 0 || params.NumChannels%(params.NumStreams*params.XengsPerStream) != 0:
		return fmt.Errorf("numChannels (%d) must be a multiple of all X-engines (%d)", params.NumChannels, params.NumStreams*params.XengsPerStream)
	case params.NumAntennas <= 0:
		return fmt.Errorf("numAntennas must be positive")
	case params.NumAccs <= 0 || params.TicksBetweenSpectra <= 0:
		return fmt.Errorf("numAccs and ticksBetweenSpectra must be positive")
	case params.AdcSampleRate <= 0:
		return fmt.Errorf("adcSampleRate must be positive")
	case params.Legacy && params.XengsPerStream != 1:
		return fmt.Errorf("legacy format requires one X-engine per stream")
	case params.DropRate < 0 || params.DropRate >= 1:
		return fmt.Errorf("dropRate must be within [0, 1)")
	}
	return nil
}

// CBF produces metadata and data heaps of a simulated correlator
//
// CBF is not thread-safe.
type CBF struct {
	params       Params
	blsOrdering  [][]string
	heapChannels int
	random       *rand.Rand
}

// NewCBF creates a CBF
func NewCBF(params Params) (*CBF, error) {
	if err := params.Verify(); err != nil {
		return nil, err
	}
	return &CBF{
		params:       params,
		blsOrdering:  makeBaselines(params.NumAntennas),
		heapChannels: params.NumChannels / (params.NumStreams * params.XengsPerStream),
		random:       rand.New(rand.NewSource(params.Seed)),
	}, nil
}

// makeBaselines lists all correlation products of dual-polarised antennas, auto-correlations included
func makeBaselines(numAntennas int) [][]string {
	inputs := lo.Times(numAntennas, func(i int) string {
		return fmt.Sprintf("m%03d", i)
	})
	var baselines [][]string
	for a := range inputs {
		for b := a; b < len(inputs); b++ {
			for _, pols := range []string{"hh", "vv", "hv", "vh"} {
				baselines = append(baselines, []string{inputs[a] + pols[:1], inputs[b] + pols[1:]})
			}
		}
	}
	return baselines
}

// Params returns the parameters
func (cbf *CBF) Params() Params {
	return cbf.params
}

// Interval returns the timestamp difference between dumps
func (cbf *CBF) Interval() uint64 {
	return uint64(cbf.params.TicksBetweenSpectra) * uint64(cbf.params.NumAccs)
}

// NumBaselines returns the number of correlation products
func (cbf *CBF) NumBaselines() int {
	return len(cbf.blsOrdering)
}

// HeapChannels returns the number of channels per data heap
func (cbf *CBF) HeapChannels() int {
	return cbf.heapChannels
}

// Attributes returns the critical attributes by name, as published in metadata heaps
func (cbf *CBF) Attributes() map[string]interface{} {
	p := cbf.params
	bandwidth := p.AdcSampleRate / 2
	return map[string]interface{}{
		"adc_sample_rate":        p.AdcSampleRate,
		"n_chans":                int64(p.NumChannels),
		"n_accs":                 int64(p.NumAccs),
		"bls_ordering":           cbf.blsOrdering,
		"bandwidth":              bandwidth,
		"center_freq":            p.CenterFreq,
		"sync_time":              p.SyncTime,
		"int_time":               float64(cbf.Interval()) / p.AdcSampleRate,
		"scale_factor_timestamp": p.AdcSampleRate,
		"ticks_between_spectra":  int64(p.TicksBetweenSpectra),
		"n_chans_per_substream":  int64(p.NumChannels / p.NumStreams),
	}
}

// MetadataHeap returns the items of a metadata heap: all attributes plus sensors
func (cbf *CBF) MetadataHeap() []*base.Item {
	attrs := cbf.Attributes()
	items := make([]*base.Item, 0, len(attrs)+2)
	for _, name := range sortedKeys(attrs) {
		items = append(items, &base.Item{Name: name, Value: attrs[name]})
	}
	items = append(items,
		&base.Item{Name: "flags_xeng_raw", Value: int64(0)},
		&base.Item{Name: "eq_coef_m000h", Shape: []int{2}, DType: "float32", Data: make([]byte, 8)},
	)
	return items
}

// Timestamp returns the raw timestamp of a dump as sent by CBF, wrapped at 48 bits
func (cbf *CBF) Timestamp(dump int) uint64 {
	return (cbf.params.FirstTimestamp + uint64(dump)*cbf.Interval()) % uint64(defs.TimestampWrapPeriod)
}

// DataHeaps returns the data heaps of a substream for a dump, one per X-engine unless dropped
//
// The first int32 of each heap's xeng_raw is the dump number and the second is the first channel, for verification.
func (cbf *CBF) DataHeaps(stream int, dump int) [][]*base.Item {
	p := cbf.params
	numValues := cbf.heapChannels * cbf.NumBaselines() * 2
	timestamp := cbf.Timestamp(dump)
	heaps := make([][]*base.Item, 0, p.XengsPerStream)
	for x := 0; x < p.XengsPerStream; x++ {
		if p.DropRate > 0 && cbf.random.Float64() < p.DropRate {
			continue
		}
		channel0 := (stream*p.XengsPerStream + x) * cbf.heapChannels
		data := make([]byte, numValues*4)
		binary.LittleEndian.PutUint32(data[0:], uint32(dump))
		binary.LittleEndian.PutUint32(data[4:], uint32(channel0))
		items := []*base.Item{
			{Name: defs.ItemTimestamp, Value: timestamp},
			{Name: defs.ItemXengRaw, Shape: []int{cbf.heapChannels, cbf.NumBaselines(), 2}, DType: "int32", Data: data},
		}
		if !p.Legacy {
			items = append(items, &base.Item{Name: defs.ItemFrequency, Value: int64(channel0)})
		}
		heaps = append(heaps, items)
	}
	return heaps
}

// DecodeMarker reads the dump number and first channel written into xeng_raw by DataHeaps
func DecodeMarker(xengRaw *base.Item) (dump int, channel0 int) {
	if len(xengRaw.Data) < 8 {
		return -1, -1
	}
	return int(binary.LittleEndian.Uint32(xengRaw.Data[0:])), int(binary.LittleEndian.Uint32(xengRaw.Data[4:]))
}

func sortedKeys(values map[string]interface{}) []string {
	keys := maps.Keys(values)
	slices.Sort(keys)
	return keys
}
