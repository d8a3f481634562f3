package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/garyellow/lessonbot-go/internal/buildinfo"
	"github.com/garyellow/lessonbot-go/internal/config"
	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
)

const module = "whatsapp"

// Config holds Cloud API credentials.
type Config struct {
	Token         string
	PhoneNumberID string
	AppSecret     string // Webhook signing secret; Token is used when empty
	GraphURL      string // e.g. https://graph.facebook.com/v20.0
}

// Media is a downloaded attachment.
type Media struct {
	Data     []byte
	MimeType string
	Filename string
}

// Client talks to the Graph API.
type Client struct {
	http          *resty.Client
	phoneNumberID string
	secret        string
}

// NewClient creates a Graph API client.
func NewClient(cfg Config) *Client {
	secret := cfg.AppSecret
	if secret == "" {
		secret = cfg.Token
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.GraphURL, "/")).
		SetAuthToken(cfg.Token).
		SetHeader("User-Agent", buildinfo.Release())

	return &Client{
		http:          rc,
		phoneNumberID: cfg.PhoneNumberID,
		secret:        secret,
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendText sends text to a WhatsApp user, split into chunks of MaxTextRunes.
// Sending stops at the first failed chunk.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	to = normalizeRecipient(to)
	for i, chunk := range SplitText(text, MaxTextRunes) {
		if err := c.sendChunk(ctx, to, chunk); err != nil {
			return domerrors.NewWrapper(module, "send_text").Wrapf(err, "failed to send chunk %d", i+1)
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, to, body string) error {
	ctx, cancel := context.WithTimeout(ctx, config.WhatsAppRequest)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "text",
			Text:             sendText{Body: body},
		}).
		Post("/" + c.phoneNumberID + "/messages")
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	if resp.IsError() {
		return domerrors.NewHTTPError(resp.Request.URL, resp.StatusCode(), resp.String())
	}
	return nil
}

type mediaMetadata struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// DownloadMedia resolves a media id to its download URL and fetches the bytes.
// When the API reports no file name, one is derived from the id and MIME type.
func (c *Client) DownloadMedia(ctx context.Context, ref MediaRef) (*Media, error) {
	wrap := domerrors.NewWrapper(module, "download_media")
	if ref.ID == "" {
		return nil, wrap.Wrap(domerrors.ErrMediaUnavailable, "media reference is empty")
	}

	meta, err := c.mediaMetadata(ctx, ref.ID)
	if err != nil {
		return nil, wrap.Wrap(err, "failed to fetch media metadata")
	}
	if meta.URL == "" {
		return nil, wrap.Wrap(fmt.Errorf("metadata for %s has no url: %w", ref.ID, domerrors.ErrMediaUnavailable),
			"media metadata missing download url")
	}

	dlCtx, cancel := context.WithTimeout(ctx, config.WhatsAppMediaDownload)
	defer cancel()

	resp, err := c.http.R().SetContext(dlCtx).Get(meta.URL)
	if err != nil {
		return nil, wrap.Wrap(err, "failed to download media")
	}
	if resp.IsError() {
		return nil, wrap.Wrap(domerrors.NewHTTPError(meta.URL, resp.StatusCode(), ""), "failed to download media")
	}

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = resp.Header().Get("Content-Type")
	}
	filename := meta.FileName
	if filename == "" {
		filename = ref.ID + extensionFor(mimeType)
	}

	return &Media{
		Data:     resp.Body(),
		MimeType: mimeType,
		Filename: filename,
	}, nil
}

func (c *Client) mediaMetadata(ctx context.Context, mediaID string) (*mediaMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, config.WhatsAppRequest)
	defer cancel()

	var meta mediaMetadata
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&meta).
		Get("/" + mediaID)
	if err != nil {
		return nil, fmt.Errorf("get media %s: %w", mediaID, err)
	}
	if resp.IsError() {
		return nil, domerrors.NewHTTPError(resp.Request.URL, resp.StatusCode(), resp.String())
	}
	return &meta, nil
}

// commonExtensions covers the types WhatsApp delivers; mime.ExtensionsByType
// is consulted for anything else.
var commonExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/aac":       ".aac",
	"audio/amr":       ".amr",
	"video/mp4":       ".mp4",
	"video/3gpp":      ".3gp",
	"application/pdf": ".pdf",
}

func extensionFor(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}
	if ext, ok := commonExtensions[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// CheckSignature checks the X-Hub-Signature-256 header ("sha256=<hex>").
// A missing header or an unconfigured secret is accepted with a warning.
// Rejections wrap domerrors.ErrInvalidSignature.
func (c *Client) CheckSignature(header string, body []byte) error {
	if header == "" {
		slog.Warn("Webhook request without signature header; accepting payload")
		return nil
	}
	if c.secret == "" {
		slog.Warn("No secret configured for signature validation; accepting payload")
		return nil
	}

	given, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return fmt.Errorf("%w: unexpected header format", domerrors.ErrInvalidSignature)
	}
	got, err := hex.DecodeString(given)
	if err != nil {
		return fmt.Errorf("%w: header is not hex: %v", domerrors.ErrInvalidSignature, err)
	}

	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("%w: digest mismatch", domerrors.ErrInvalidSignature)
	}
	return nil
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
