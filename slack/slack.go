package slack

import (
	"bytes"
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Notifier posts operator alerts and report files to the payments ops channel.
type Notifier interface {
	PostMessage(ctx context.Context, text string) error
	UploadFile(ctx context.Context, filename, title string, data []byte) error
}

type Client struct {
	api     *slack.Client
	channel string
}

func NewClient(token, channel string) *Client {
	return &Client{
		api:     slack.New(token),
		channel: channel,
	}
}

func (c *Client) PostMessage(ctx context.Context, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, c.channel,
		slack.MsgOptionText(text, false),
	)

	return err
}

func (c *Client) UploadFile(ctx context.Context, filename, title string, data []byte) error {
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:  c.channel,
		Filename: filename,
		Title:    title,
		FileSize: len(data),
		Reader:   bytes.NewReader(data),
	})

	return err
}

// CowardNotifier logs instead of posting, for local runs.
type CowardNotifier struct{}

func (CowardNotifier) PostMessage(_ context.Context, text string) error {
	fmt.Printf("Coward notifier not posting: %s\n", text)
	return nil
}

func (CowardNotifier) UploadFile(_ context.Context, filename, _ string, data []byte) error {
	fmt.Printf("Coward notifier not uploading %s (%d bytes)\n", filename, len(data))
	return nil
}
