package dto

import "liedar/internal/fusion"

// WeightsRequest updates some or all modality weights. Omitted fields keep
// their current value; the result is renormalized.
type WeightsRequest struct {
	Facial *float64 `json:"facial,omitempty"`
	Voice  *float64 `json:"voice,omitempty"`
	Pulse  *float64 `json:"pulse,omitempty"`
}

func (r WeightsRequest) Options() []fusion.WeightOption {
	var opts []fusion.WeightOption
	if r.Facial != nil {
		opts = append(opts, fusion.Facial(*r.Facial))
	}
	if r.Voice != nil {
		opts = append(opts, fusion.Voice(*r.Voice))
	}
	if r.Pulse != nil {
		opts = append(opts, fusion.Pulse(*r.Pulse))
	}
	return opts
}
