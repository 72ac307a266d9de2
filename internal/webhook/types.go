package webhook

// Message is the Discord-compatible webhook execute body.
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title     string          `json:"title,omitempty"`
	Color     int             `json:"color,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Thumbnail *EmbedThumbnail `json:"thumbnail,omitempty"`
	Fields    []EmbedField    `json:"fields,omitempty"`
}

type EmbedThumbnail struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
