package core

// Document is the archive written once per conversion run. Streamer is nil
// when the run produced no comments.
type Document struct {
	Streamer     *Streamer
	Comments     []Comment
	EmbeddedData any
}

type Streamer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Comment is one converted chat line in VOD comment shape.
type Comment struct {
	ID                   string    `json:"_id"`
	CreatedAt            string    `json:"created_at"`
	ChannelID            string    `json:"channel_id"`
	ContentType          string    `json:"content_type"`
	ContentID            string    `json:"content_id"`
	ContentOffsetSeconds int64     `json:"content_offset_seconds"`
	Commenter            Commenter `json:"commenter"`
	Message              Message   `json:"message"`
}

type Commenter struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Logo        string `json:"logo"`
}

type Message struct {
	Body       string     `json:"body"`
	BitsSpent  int        `json:"bits_spent"`
	Fragments  []Fragment `json:"fragments"`
	UserBadges []Badge    `json:"user_badges"`
	UserColor  *string    `json:"user_color"`
	Emoticons  []Emoticon `json:"emoticons"`
}

// Fragment is a slice of the message body; Emoticon is nil for plain text.
type Fragment struct {
	Text     string            `json:"text"`
	Emoticon *FragmentEmoticon `json:"emoticon"`
}

type FragmentEmoticon struct {
	EmoticonID string `json:"emoticon_id"`
}

type Badge struct {
	ID      string `json:"_id"`
	Version string `json:"version"`
}

// Emoticon is one emote occurrence; Begin and End are inclusive UTF-16 offsets.
type Emoticon struct {
	ID    string `json:"id"`
	Begin int    `json:"begin"`
	End   int    `json:"end"`
}
