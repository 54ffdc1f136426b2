// Package recorder is the HTTP client for the attendance backend. It is the
// only place the check-in flow touches the network.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"classattend/internal/guard"
)

// Record is one server-owned attendance row.
type Record struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
}

// Student is one roster entry.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Client calls the attendance backend REST API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with a short timeout; attendance calls are small.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// PutAttendance writes one record. A 409 from the server becomes
// guard.ErrServerConflict; transport and 5xx failures become
// guard.ErrUnavailable so the caller knows a retry is legitimate.
func (c *Client) PutAttendance(ctx context.Context, classID, studentID, date string, status guard.Status) error {
	endpoint := fmt.Sprintf("%s/v1/classes/%s/attendance/%s/%s?date=%s",
		c.BaseURL, url.PathEscape(classID), url.PathEscape(studentID), url.PathEscape(string(status)), url.QueryEscape(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", guard.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return guard.ErrServerConflict
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", guard.ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("attendance rejected: %s", readError(resp.Body, resp.StatusCode))
	}
}

// AttendanceForDate returns the class's records for one calendar date.
func (c *Client) AttendanceForDate(ctx context.Context, classID, date string) ([]Record, error) {
	endpoint := fmt.Sprintf("%s/v1/classes/%s/attendance/%s", c.BaseURL, url.PathEscape(classID), url.PathEscape(date))
	var out struct {
		Attendance []Record `json:"attendance"`
	}
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Attendance, nil
}

// ClassInfo is the enrollment context a check-in attempt needs.
type ClassInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Schedule struct {
		Days      map[string][]string `json:"days"`
		Timezone  string              `json:"timezone"`
		StartDate string              `json:"start_date"`
		EndDate   string              `json:"end_date"`
	} `json:"schedule"`
	BeaconID *string `json:"ble_id,omitempty"`
}

// Class fetches one class's schedule and beacon binding.
func (c *Client) Class(ctx context.Context, classID string) (ClassInfo, error) {
	endpoint := fmt.Sprintf("%s/v1/classes/%s", c.BaseURL, url.PathEscape(classID))
	var out ClassInfo
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return ClassInfo{}, err
	}
	return out, nil
}

// Roster returns the students enrolled in the class.
func (c *Client) Roster(ctx context.Context, classID string) ([]Student, error) {
	endpoint := fmt.Sprintf("%s/v1/classes/%s/students", c.BaseURL, url.PathEscape(classID))
	var out struct {
		Students []Student `json:"students"`
	}
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Students, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", guard.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", guard.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: %s", readError(resp.Body, resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func readError(body io.Reader, code int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("status %d", code)
}
