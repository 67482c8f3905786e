// Package api is the terminal client for the advisor HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/catalog"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/dto"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/tui/sse"
)

// APIError is a non-2xx response carrying the server's error body.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for baseURL. The default HTTP client has no overall
// timeout so chat streams are bounded only by the caller's context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog fetches the server's current question catalog.
func (c *Client) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/catalog", nil, 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	cat, err := catalog.Load(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return cat, nil
}

// Submit posts a finished wizard submission and returns the new assessment id.
func (c *Client) Submit(ctx context.Context, sub model.Submission) (int64, error) {
	body, err := SubmissionRequest(sub)
	if err != nil {
		return 0, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/assessments", body, 30*time.Second)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out dto.SubmitAssessmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding submit response: %w", err)
	}
	return out.AssessmentID, nil
}

// SubmissionRequest converts a wizard submission to the request body.
func SubmissionRequest(sub model.Submission) (*dto.SubmitAssessmentRequest, error) {
	a := sub.Assessment
	req := &dto.SubmitAssessmentRequest{
		Assessment: dto.AssessmentFields{
			SessionID:       a.SessionID,
			CompanyName:     a.CompanyName,
			Industry:        a.Industry,
			CompanySize:     a.CompanySize,
			Role:            a.Role,
			ChangeReadiness: a.ChangeReadiness,
			ContactName:     a.ContactName,
			ContactEmail:    a.ContactEmail,
		},
		Responses: make([]dto.ResponseInput, 0, len(sub.Responses)),
	}
	for _, r := range sub.Responses {
		raw, err := model.MarshalAnswer(r.Answer)
		if err != nil {
			return nil, fmt.Errorf("encoding answer %s: %w", r.QuestionKey, err)
		}
		req.Responses = append(req.Responses, dto.ResponseInput{
			StepNumber:   r.StepNumber,
			QuestionKey:  r.QuestionKey,
			QuestionText: r.QuestionText,
			AnswerValue:  raw,
		})
	}
	return req, nil
}

type ChatOptions struct {
	Journey        bool
	ConversationID string
}

// Chat sends one message and calls fn for every streamed event. It returns
// once the stream's terminal event has been handled.
func (c *Client) Chat(ctx context.Context, assessmentID int64, message string, opts ChatOptions, fn func(sse.Event) error) error {
	body := dto.ChatRequest{Message: message}
	if opts.ConversationID != "" {
		body.ConversationID = &opts.ConversationID
	}

	resp, err := c.do(ctx, http.MethodPost, chatPath(assessmentID, opts.Journey, ""), body, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return sse.Read(ctx, resp.Body, fn)
}

// History lists the caller's conversations for one chat variant.
func (c *Client) History(ctx context.Context, assessmentID int64, journey bool) ([]dto.ConversationResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, chatPath(assessmentID, journey, "/history"), nil, 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out dto.ChatHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return out.Conversations, nil
}

func chatPath(assessmentID int64, journey bool, suffix string) string {
	id := url.PathEscape(strconv.FormatInt(assessmentID, 10))
	if journey {
		return "/api/v1/assessments/" + id + "/journey/chat" + suffix
	}
	return "/api/v1/assessments/" + id + "/chat" + suffix
}

// do sends the request and returns the response when it is 2xx. A positive
// timeout bounds the whole exchange including reading the body.
func (c *Client) do(ctx context.Context, method, path string, body any, timeout time.Duration) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		cancel()
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{Status: resp.StatusCode}

	var body dto.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

// cancelBody releases the request timeout when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
