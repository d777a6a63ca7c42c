package receiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCriticalAttributesMerge(t *testing.T) {
	var attrs CriticalAttributes
	assert.Len(t, attrs.Missing(), len(CriticalAttributeNames))
	assert.False(t, attrs.IsComplete())
	assert.Equal(t, uint64(0), attrs.Interval())

	result, err := attrs.merge(AttrNumChans, "4096")
	assert.NoError(t, err)
	assert.Equal(t, mergeApplied, result)
	assert.Equal(t, int64(4096), *attrs.NumChans)

	result, err = attrs.merge(AttrNumChans, uint32(4096))
	assert.NoError(t, err)
	assert.Equal(t, mergeUnchanged, result)

	result, err = attrs.merge(AttrNumChans, 32768)
	assert.NoError(t, err)
	assert.Equal(t, mergeConflict, result)
	assert.Equal(t, int64(4096), *attrs.NumChans)

	result, err = attrs.merge(AttrNumAccs, 0)
	assert.EqualError(t, err, "non-positive value 0")
	assert.Equal(t, mergeIgnored, result)
	assert.Nil(t, attrs.NumAccs)

	result, err = attrs.merge("input_labels", []string{"m000h"})
	assert.NoError(t, err)
	assert.Equal(t, mergeIgnored, result)

	result, err = attrs.merge(AttrSyncTime, "yesterday")
	assert.Error(t, err)
	assert.Equal(t, mergeIgnored, result)
}

func TestCriticalAttributesBaselines(t *testing.T) {
	var attrs CriticalAttributes
	_, err := attrs.merge(AttrBlsOrdering, [][]string{{"m000h", "m000h"}, {"m000h", "m001v"}})
	assert.NoError(t, err)
	assert.Equal(t, 2, attrs.NumBaselines())

	// as decoded from heaps
	result, err := attrs.merge(AttrBlsOrdering, []interface{}{[]interface{}{"m000h", "m000h"}, []interface{}{"m000h", "m001v"}})
	assert.NoError(t, err)
	assert.Equal(t, mergeUnchanged, result)

	var other CriticalAttributes
	_, err = other.merge(AttrBlsOrdering, []interface{}{[]interface{}{"m000h"}})
	assert.EqualError(t, err, "baseline[0]: expected 2 inputs, got 1")
	_, err = other.merge(AttrBlsOrdering, 3)
	assert.Error(t, err)
	assert.Nil(t, other.BlsOrdering)
}

func TestCriticalAttributesDerived(t *testing.T) {
	var attrs CriticalAttributes
	for name, value := range map[string]interface{}{
		AttrAdcSampleRate:        1712e6,
		AttrNumChans:             4096,
		AttrNumAccs:              408 * 256,
		AttrBlsOrdering:          [][]string{{"m000h", "m000h"}},
		AttrBandwidth:            856e6,
		AttrCenterFreq:           1284e6,
		AttrSyncTime:             1500000000.0,
		AttrIntTime:              0.49978,
		AttrScaleFactorTimestamp: 1712e6,
		AttrTicksBetweenSpectra:  8192,
		AttrNumChansPerSubstream: 256,
	} {
		result, err := attrs.merge(name, value)
		assert.NoError(t, err, name)
		assert.Equal(t, mergeApplied, result, name)
	}
	assert.True(t, attrs.IsComplete())
	assert.Empty(t, attrs.Missing())
	assert.Equal(t, uint64(8192*408*256), attrs.Interval())
	assert.Equal(t, time.Date(2017, 7, 14, 2, 40, 1, 0, time.UTC), attrs.TimestampToTime(1712e6))
	assert.True(t, CriticalAttributes{}.TimestampToTime(1).IsZero())
}

func TestAttributeSetFreeze(t *testing.T) {
	var set attributeSet
	result, _ := set.Merge(AttrNumAccs, 2)
	assert.Equal(t, mergeApplied, result)
	set.Freeze()

	result, _ = set.Merge(AttrNumAccs, 2)
	assert.Equal(t, mergeUnchanged, result)
	result, _ = set.Merge(AttrNumAccs, 3)
	assert.Equal(t, mergeConflict, result)
	result, _ = set.Merge(AttrNumChans, 16)
	assert.Equal(t, mergeIgnored, result)

	snapshot := set.Snapshot()
	assert.Nil(t, snapshot.NumChans)
	assert.Equal(t, int64(2), *snapshot.NumAccs)
	assert.Contains(t, set.Missing(), AttrNumChans)
	assert.True(t, IsCritical(AttrNumChans))
	assert.False(t, IsCritical("flags_xeng_raw"))
}
