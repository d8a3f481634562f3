// Package whatsapp is the WhatsApp Business Cloud API adapter: webhook
// payload decoding, signature verification, text replies and media download.
package whatsapp

import (
	"encoding/json"
	"fmt"
	"strings"

	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
)

// Kind is the type of an inbound message the bot understands.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// IsMedia reports whether the kind carries a media attachment.
func (k Kind) IsMedia() bool {
	return k == KindImage || k == KindAudio || k == KindVideo
}

// MediaRef points at a media object hosted by WhatsApp.
type MediaRef struct {
	ID       string
	Filename string
	Caption  string
}

// Message is one inbound message extracted from a webhook delivery.
type Message struct {
	Sender string
	ID     string
	Kind   Kind
	Text   string    // Set for KindText
	Media  *MediaRef // Set for media kinds; ID may be empty when the payload is incomplete
}

// Webhook payload, reduced to the fields the bot reads.
type (
	webhookPayload struct {
		Object string  `json:"object"`
		Entry  []entry `json:"entry"`
	}

	entry struct {
		ID      string   `json:"id"`
		Changes []change `json:"changes"`
	}

	change struct {
		Field string      `json:"field"`
		Value changeValue `json:"value"`
	}

	changeValue struct {
		Contacts []contact        `json:"contacts"`
		Messages []inboundMessage `json:"messages"`
	}

	contact struct {
		WaID string `json:"wa_id"`
	}

	inboundMessage struct {
		From  string      `json:"from"`
		ID    string      `json:"id"`
		Type  string      `json:"type"`
		Text  *textBody   `json:"text"`
		Image *mediaBlock `json:"image"`
		Audio *mediaBlock `json:"audio"`
		Video *mediaBlock `json:"video"`
	}

	textBody struct {
		Body string `json:"body"`
	}

	mediaBlock struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Caption  string `json:"caption"`
		MimeType string `json:"mime_type"`
	}
)

// ExtractMessages decodes a webhook body and returns its text, image, audio
// and video messages in delivery order. Other message types, status
// callbacks and messages without a resolvable sender are skipped.
func ExtractMessages(body []byte) ([]Message, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w: %w", domerrors.ErrInvalidInput, err)
	}

	var messages []Message
	for _, e := range payload.Entry {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				kind := Kind(m.Type)
				if kind != KindText && !kind.IsMedia() {
					continue
				}

				sender := strings.TrimSpace(m.From)
				if sender == "" && len(c.Value.Contacts) > 0 {
					sender = c.Value.Contacts[0].WaID
				}
				if sender == "" {
					continue
				}

				msg := Message{Sender: sender, ID: m.ID, Kind: kind}
				if kind == KindText {
					if m.Text != nil {
						msg.Text = m.Text.Body
					}
				} else {
					msg.Media = mediaRef(m.block(kind))
				}
				messages = append(messages, msg)
			}
		}
	}
	return messages, nil
}

func (m inboundMessage) block(kind Kind) *mediaBlock {
	switch kind {
	case KindImage:
		return m.Image
	case KindAudio:
		return m.Audio
	case KindVideo:
		return m.Video
	default:
		return nil
	}
}

func mediaRef(b *mediaBlock) *MediaRef {
	if b == nil {
		return &MediaRef{}
	}
	return &MediaRef{ID: b.ID, Filename: b.Filename, Caption: b.Caption}
}
