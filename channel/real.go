package channel

import "github.com/google/uuid"

// RealChannel marks a virtual channel as currently mapped onto one or
// more mixer layers. It is acquired by the virtualisation
// policy before the mixer is asked to play, and released when the policy
// demotes the channel.
type RealChannel struct {
	MixerChannelID uuid.UUID
	Layers         []int
}

func newRealChannel() *RealChannel {
	return &RealChannel{MixerChannelID: uuid.New()}
}

// addLayer records one mixer layer selected for this channel.
func (r *RealChannel) addLayer(index int) {
	r.Layers = append(r.Layers, index)
}

// removeLayer forgets index, keeping the remaining selection intact.
func (r *RealChannel) removeLayer(index int) {
	for i, l := range r.Layers {
		if l == index {
			r.Layers = append(r.Layers[:i], r.Layers[i+1:]...)
			return
		}
	}
}
