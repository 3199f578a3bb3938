package model

import "time"

// Transcript produced by the transcription service
type Transcript struct {
	Text          string      `json:"transcript"`
	Chapters      []Chapter   `json:"chapters,omitempty"`
	Highlights    []Highlight `json:"highlights,omitempty"`
	Speakers      []Utterance `json:"speakers,omitempty"`
	Entities      []Entity    `json:"entities,omitempty"`
	Confidence    float64     `json:"confidence"`
	AudioDuration float64     `json:"audio_duration"` // seconds
	Service       string      `json:"service"`
	GeneratedAt   time.Time   `json:"generated_at"`
}

type Chapter struct {
	Summary  string `json:"summary"`
	Headline string `json:"headline"`
	Gist     string `json:"gist"`
	Start    int64  `json:"start,omitempty"`
	End      int64  `json:"end,omitempty"`
}

type Highlight struct {
	Text  string  `json:"text"`
	Rank  float64 `json:"rank"`
	Count int     `json:"count,omitempty"`
}

type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start,omitempty"`
	End     int64  `json:"end,omitempty"`
}

type Entity struct {
	Text       string `json:"text"`
	EntityType string `json:"entity_type"`
}

// Poster generated from a transcript
type Poster struct {
	ImageURL    string    `json:"image_url"`
	RemoteURL   string    `json:"remote_url,omitempty"`
	Prompt      string    `json:"prompt"`
	Service     string    `json:"service"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Blog article generated from a transcript
type Blog struct {
	Content     string    `json:"blog_content"`
	WordCount   int       `json:"word_count"`
	Service     string    `json:"service"`
	GeneratedAt time.Time `json:"generated_at"`
}

// MeetingDetails is the context handed to poster and blog prompts
type MeetingDetails struct {
	Title           string
	Date            string
	DurationMinutes int
}
