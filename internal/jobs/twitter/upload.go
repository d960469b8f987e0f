package twitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

const (
	videoCategory     = "tweet_video"
	imageCategory     = "tweet_image"
	gifCategory       = "tweet_gif"
	maxStatusChecks   = 30
	uploadMaxRetries  = 3
	defaultCheckAfter = 1 * time.Second
)

// uploader talks to the media upload endpoint, which go-twitter does not
// cover. Requests go through the signed client of the account.
type uploader struct {
	http      *http.Client
	url       string
	chunkSize int
}

// UploadError is a non-2xx answer of the upload endpoint.
type UploadError struct {
	Command    string
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("media upload %s: status %d: %s", e.Command, e.StatusCode, e.Message)
}

// simple uploads a photo in one multipart request.
func (u *uploader) simple(ctx context.Context, data []byte, mimeType string) (int64, error) {
	fields := map[string]string{"media_category": imageCategory}
	if mimeType == "image/gif" {
		fields["media_category"] = gifCategory
	}
	body, err := u.send(ctx, "UPLOAD", func() (*http.Request, error) {
		return u.multipart(ctx, fields, "media", data)
	})
	if err != nil {
		return 0, err
	}
	return mediaID(body)
}

// chunked runs INIT, APPEND and FINALIZE and waits for server side
// processing to finish.
func (u *uploader) chunked(ctx context.Context, data []byte, mimeType string) (int64, error) {
	body, err := u.send(ctx, "INIT", func() (*http.Request, error) {
		return u.form(ctx, url.Values{
			"command":        {"INIT"},
			"total_bytes":    {strconv.Itoa(len(data))},
			"media_type":     {mimeType},
			"media_category": {videoCategory},
		})
	})
	if err != nil {
		return 0, err
	}
	id, err := mediaID(body)
	if err != nil {
		return 0, err
	}
	idStr := strconv.FormatInt(id, 10)

	chunk := u.chunkSize
	if chunk <= 0 {
		chunk = len(data)
	}
	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+chunk {
		end := offset + chunk
		if end > len(data) {
			end = len(data)
		}
		fields := map[string]string{
			"command":       "APPEND",
			"media_id":      idStr,
			"segment_index": strconv.Itoa(segment),
		}
		part := data[offset:end]
		if _, err := u.send(ctx, "APPEND", func() (*http.Request, error) {
			return u.multipart(ctx, fields, "media", part)
		}); err != nil {
			return 0, err
		}
	}

	body, err = u.send(ctx, "FINALIZE", func() (*http.Request, error) {
		return u.form(ctx, url.Values{"command": {"FINALIZE"}, "media_id": {idStr}})
	})
	if err != nil {
		return 0, err
	}
	return id, u.awaitProcessing(ctx, idStr, body)
}

func (u *uploader) awaitProcessing(ctx context.Context, idStr string, body []byte) error {
	for i := 0; i < maxStatusChecks; i++ {
		state, err := jsonparser.GetString(body, "processing_info", "state")
		if err != nil {
			// No processing info means the media is ready.
			return nil
		}
		switch state {
		case "succeeded":
			return nil
		case "failed":
			msg, _ := jsonparser.GetString(body, "processing_info", "error", "message")
			return &UploadError{Command: "STATUS", StatusCode: http.StatusOK, Message: "processing failed: " + msg}
		}

		wait := defaultCheckAfter
		if secs, err := jsonparser.GetInt(body, "processing_info", "check_after_secs"); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
		logrus.Debugf("Media %s is %s, checking again in %v", idStr, state, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		body, err = u.send(ctx, "STATUS", func() (*http.Request, error) {
			q := url.Values{"command": {"STATUS"}, "media_id": {idStr}}
			return http.NewRequestWithContext(ctx, http.MethodGet, u.url+"?"+q.Encode(), nil)
		})
		if err != nil {
			return err
		}
	}
	return &UploadError{Command: "STATUS", StatusCode: http.StatusOK, Message: "processing did not finish"}
}

func (u *uploader) form(ctx context.Context, values url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (u *uploader) multipart(ctx context.Context, fields map[string]string, fileField string, data []byte) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := w.CreateFormFile(fileField, "blob")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// send issues the request built by newReq, retrying transport errors and
// 5xx answers. 401 and 429 map onto the sentinel errors.
func (u *uploader) send(ctx context.Context, command string, newReq func() (*http.Request, error)) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := u.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		msg, _ := jsonparser.GetString(body, "errors", "[0]", "message")
		if msg == "" {
			msg, _ = jsonparser.GetString(body, "error")
		}
		uerr := &UploadError{Command: command, StatusCode: resp.StatusCode, Message: msg}
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrAuthInvalid, uerr))
		case resp.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrRateLimited, uerr))
		case resp.StatusCode >= 500:
			return uerr
		default:
			return backoff.Permanent(uerr)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uploadMaxRetries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func mediaID(body []byte) (int64, error) {
	s, err := jsonparser.GetString(body, "media_id_string")
	if err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	id, err := jsonparser.GetInt(body, "media_id")
	if err != nil {
		return 0, fmt.Errorf("upload response without media id: %w", err)
	}
	return id, nil
}
