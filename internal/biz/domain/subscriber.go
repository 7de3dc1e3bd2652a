package domain

// Subscriber is a user watching a resource, and the channel they watched it from
type Subscriber struct {
	UserID    string `json:"user" yaml:"user"`
	ChannelID string `json:"channel" yaml:"channel"`
}

// Profile is the subset of a user profile the relay needs
type Profile struct {
	UserID      string
	DisplayName string
	RealName    string
}

// Name returns the display name, falling back to the real name
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.RealName
}
