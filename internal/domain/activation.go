package domain

// ActivationChannel names where a failed-over visitor was sent.
type ActivationChannel string

const (
	ChannelWidget   ActivationChannel = "widget"
	ChannelDeepLink ActivationChannel = "deeplink"
)

// Activation is the outcome of handing a visitor to the secondary channel.
// URL is set for deep-link activations.
type Activation struct {
	Channel ActivationChannel `json:"channel"`
	URL     string            `json:"url,omitempty"`
}
