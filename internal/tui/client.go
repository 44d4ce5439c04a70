package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/jobs"
)

type recordMsg events.Record

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Actions       int    `json:"actions"`
	Applications  int    `json:"applications"`
}

type snapshotMsg []*jobs.Job

type tickMsg time.Time

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// disconnectedMsg carries the last sequence seen so the next connection
// resumes from it.
type disconnectedMsg struct{ lastSeq int64 }

type reconnectMsg struct{ lastSeq int64 }

// Client talks to a running slate API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := c.newRequest(ctx, path)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Jobs returns the most recent job records.
func (c *Client) Jobs(ctx context.Context, limit int) ([]*jobs.Job, error) {
	var resp struct {
		Jobs []*jobs.Job `json:"jobs"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/jobs?limit=%d", limit), &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Follow streams records after lastSeq into ch until the connection drops
// or ctx ends, and returns the last sequence delivered.
func (c *Client) Follow(ctx context.Context, lastSeq int64, ch chan<- events.Record) (int64, error) {
	req, err := c.newRequest(ctx, "/events")
	if err != nil {
		return lastSeq, err
	}
	if lastSeq > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(lastSeq, 10))
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return lastSeq, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return lastSeq, fmt.Errorf("GET /events: %s", resp.Status)
	}
	return readStream(ctx, resp.Body, lastSeq, ch)
}

// readStream parses server-sent events framing.
func readStream(ctx context.Context, r io.Reader, lastSeq int64, ch chan<- events.Record) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var cur events.Record
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			cur.Data = json.RawMessage(data.String())
			cur.At = time.Now().UTC()
			select {
			case ch <- cur:
			case <-ctx.Done():
				return lastSeq, ctx.Err()
			}
			if cur.Seq > lastSeq {
				lastSeq = cur.Seq
			}
			cur = events.Record{}
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keep-alive
		case strings.HasPrefix(line, "id: "):
			if seq, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				cur.Seq = seq
			}
		case strings.HasPrefix(line, "event: "):
			cur.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(line[6:])
		}
	}
	return lastSeq, scanner.Err()
}

func (m Model) follow(lastSeq int64) tea.Cmd {
	return func() tea.Msg {
		seq, _ := m.client.Follow(m.ctx, lastSeq, m.records)
		return disconnectedMsg{lastSeq: seq}
	}
}

func (m Model) receiveNext() tea.Cmd {
	return func() tea.Msg {
		select {
		case rec := <-m.records:
			return recordMsg(rec)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) fetchHealth() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
	defer cancel()
	var h healthMsg
	if err := m.client.getJSON(ctx, "/healthz", &h); err != nil {
		return errMsg{err}
	}
	return h
}

func (m Model) fetchSnapshot() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	list, err := m.client.Jobs(ctx, maxJobs)
	if err != nil {
		return errMsg{err}
	}
	return snapshotMsg(list)
}
