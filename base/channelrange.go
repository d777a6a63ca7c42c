package base

import (
	"fmt"

	"github.com/ska-sa/cbf-ingest/util"
	"gopkg.in/yaml.v3"
)

// ChannelRange is a half-open range of frequency channels [Start, Stop)
type ChannelRange struct {
	Start int
	Stop  int
}

// Len returns the number of channels in the range
func (rg ChannelRange) Len() int {
	return rg.Stop - rg.Start
}

// IsAligned checks whether both ends of the range are multiples of the given channel count
func (rg ChannelRange) IsAligned(alignment int) bool {
	return alignment > 0 && rg.Start%alignment == 0 && rg.Stop%alignment == 0
}

// IsSubsetOf checks whether the range lies wholly inside the given range
func (rg ChannelRange) IsSubsetOf(other ChannelRange) bool {
	return rg.Start >= other.Start && rg.Stop <= other.Stop
}

// Contains checks whether the channel is inside the range
func (rg ChannelRange) Contains(channel int) bool {
	return channel >= rg.Start && channel < rg.Stop
}

func (rg ChannelRange) String() string {
	return fmt.Sprintf("%d:%d", rg.Start, rg.Stop)
}

// MarshalYAML exports the range as a [start, stop] sequence
func (rg ChannelRange) MarshalYAML() (interface{}, error) {
	return []int{rg.Start, rg.Stop}, nil
}

// UnmarshalYAML reads the range from a [start, stop] sequence
func (rg *ChannelRange) UnmarshalYAML(node *yaml.Node) error {
	var ends []int
	if err := node.Decode(&ends); err != nil {
		return util.NewYamlError(node, err.Error())
	}
	if len(ends) != 2 {
		return util.NewYamlError(node, fmt.Sprintf("channel range requires [start, stop], got %d values", len(ends)))
	}
	if ends[0] < 0 || ends[1] <= ends[0] {
		return util.NewYamlError(node, fmt.Sprintf("invalid channel range [%d, %d]", ends[0], ends[1]))
	}
	rg.Start = ends[0]
	rg.Stop = ends[1]
	return nil
}
