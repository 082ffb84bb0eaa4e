package enums

import (
	"fmt"
	"strings"
)

// Channel is the sales channel an order came in through.
type Channel string

const (
	ChannelDirect     Channel = "Direct"
	ChannelLine       Channel = "Line"
	ChannelPhone      Channel = "Phone"
	ChannelWholesale  Channel = "Wholesale"
	ChannelGoogleForm Channel = "GoogleForm"
)

var validChannels = []Channel{
	ChannelDirect,
	ChannelLine,
	ChannelPhone,
	ChannelWholesale,
	ChannelGoogleForm,
}

func (c Channel) String() string {
	return string(c)
}

func (c Channel) IsValid() bool {
	for _, candidate := range validChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChannel matches case-insensitively and returns the canonical spelling.
func ParseChannel(value string) (Channel, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validChannels {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel %q", value)
}
