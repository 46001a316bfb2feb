package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTPSender posts messages as multipart forms to a transactional-mail API.
type HTTPSender struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPSender creates a sender for the API at baseURL.
func NewHTTPSender(baseURL, apiKey string) *HTTPSender {
	return &HTTPSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the mail API is reachable.
func (s *HTTPSender) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/healthcheck", nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Send streams the message and its attachments to {baseURL}/messages.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		_ = writer.WriteField("from", msg.From)
		_ = writer.WriteField("to", msg.To)
		if msg.ReplyTo != "" {
			_ = writer.WriteField("h:Reply-To", msg.ReplyTo)
		}
		_ = writer.WriteField("subject", msg.Subject)
		_ = writer.WriteField("html", msg.HTML)
		_ = writer.WriteField("text", msg.Text)
		_ = writer.WriteField("tag", string(msg.Kind))

		for _, a := range msg.Attachments {
			part, err := writer.CreateFormFile("attachment", a.FileName)
			if err != nil {
				errCh <- fmt.Errorf("failed to create form file: %w", err)
				return
			}
			if _, err := part.Write(a.Data); err != nil {
				errCh <- fmt.Errorf("failed to write %s: %w", a.FileName, err)
				return
			}
		}
		errCh <- nil
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.apiKey != "" {
		req.SetBasicAuth("api", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		<-errCh
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode/100 != 2 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		if body.Message != "" {
			return fmt.Errorf("mail api returned status %d: %s", resp.StatusCode, body.Message)
		}
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}
	return nil
}
