package whatsapp

import (
	"errors"
	"strings"
	"testing"

	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "contacts": [{"wa_id": "15550009999"}],
        "messages": [
          {"from": "15551234567", "id": "wamid.1", "type": "text", "text": {"body": "HELP"}},
          {"from": "15551234567", "id": "wamid.2", "type": "image", "image": {"id": "img-1", "caption": "diagram", "mime_type": "image/jpeg"}},
          {"from": "15551234567", "id": "wamid.3", "type": "sticker", "sticker": {"id": "st-1"}},
          {"id": "wamid.4", "type": "audio", "audio": {"id": "aud-1", "filename": "note.ogg"}},
          {"from": "15551234567", "id": "wamid.5", "type": "video"}
        ]
      }
    }]
  }]
}`

func TestExtractMessages(t *testing.T) {
	t.Parallel()

	messages, err := ExtractMessages([]byte(samplePayload))
	if err != nil {
		t.Fatalf("ExtractMessages() = %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4 (sticker skipped)", len(messages))
	}

	text := messages[0]
	if text.Kind != KindText || text.Text != "HELP" || text.Sender != "15551234567" || text.ID != "wamid.1" {
		t.Errorf("text message = %+v", text)
	}
	if text.Media != nil {
		t.Error("text message should have no media")
	}

	image := messages[1]
	if image.Kind != KindImage || image.Media == nil || image.Media.ID != "img-1" || image.Media.Caption != "diagram" {
		t.Errorf("image message = %+v", image)
	}

	audio := messages[2]
	if audio.Sender != "15550009999" {
		t.Errorf("sender fallback = %q, want contact wa_id", audio.Sender)
	}
	if audio.Media.Filename != "note.ogg" {
		t.Errorf("audio filename = %q", audio.Media.Filename)
	}

	video := messages[3]
	if video.Media == nil || video.Media.ID != "" {
		t.Errorf("video without block should carry an empty ref, got %+v", video.Media)
	}
}

func TestExtractMessages_NoMessages(t *testing.T) {
	t.Parallel()

	statusOnly := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.x","status":"read"}]}}]}]}`
	messages, err := ExtractMessages([]byte(statusOnly))
	if err != nil {
		t.Fatalf("ExtractMessages() = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("len(messages) = %d, want 0", len(messages))
	}
}

func TestExtractMessages_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := ExtractMessages([]byte(`{"entry":`))
	if !errors.Is(err, domerrors.ErrInvalidInput) {
		t.Errorf("ExtractMessages() = %v, want ErrInvalidInput", err)
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, nil},
		{"fits", "short", 10, []string{"short"}},
		{"newline preferred", "abc def\nghij", 10, []string{"abc def", "ghij"}},
		{"space fallback", "abcd efghij", 8, []string{"abcd", "efghij"}},
		{"newline at window start", "\nab cdefg", 5, []string{"ab", "cdefg"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte runes", strings.Repeat("é", 5), 2, []string{"éé", "éé", "é"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitText(tt.text, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitText() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestKindIsMedia(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindImage, KindAudio, KindVideo} {
		if !k.IsMedia() {
			t.Errorf("%s.IsMedia() = false", k)
		}
	}
	if KindText.IsMedia() {
		t.Error("text is not media")
	}
}
