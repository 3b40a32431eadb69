package gpio

import (
	"fmt"

	"github.com/sweeney/owmaster/internal/model"
)

// LineSetter drives the raw level of one requested output line.
type LineSetter interface {
	SetValue(value int) error
}

// Output binds an output channel to the line that drives it.
type Output struct {
	Channel *model.Channel
	Setter  LineSetter
}

// OutputBus translates logical channel writes into raw line levels,
// honoring the channel's configured polarity.
type OutputBus struct {
	outs map[model.ChannelKey]Output
}

func NewOutputBus(outs []Output) (*OutputBus, error) {
	m := make(map[model.ChannelKey]Output, len(outs))
	for _, o := range outs {
		key := o.Channel.Key()
		if _, dup := m[key]; dup {
			return nil, fmt.Errorf("duplicate output line for %s", o.Channel.Address())
		}
		m[key] = o
	}
	return &OutputBus{outs: m}, nil
}

// Write sets the channel active (true) or inactive (false).
func (b *OutputBus) Write(device, channel string, value bool) error {
	key := model.ChannelKey{Device: model.DeviceID(device), Channel: channel}
	o, ok := b.outs[key]
	if !ok {
		return fmt.Errorf("no output line for %s.%s", device, channel)
	}
	level := o.Channel.ActiveLevel()
	if !value {
		level = 1 - level
	}
	return o.Setter.SetValue(level)
}
