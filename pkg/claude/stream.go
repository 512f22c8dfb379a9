package claude

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/modelrelay/claudebridge/pkg/types"
)

// doneSentinel terminates the event stream alongside message_stop.
const doneSentinel = "[DONE]"

// eventParser turns raw SSE bytes into partial responses. It is purely
// incremental: feeding the same bytes in any chunking produces the same
// sequence of responses, because state advances only on complete lines.
type eventParser struct {
	buf bytes.Buffer

	responseID   string
	inputTokens  int
	outputTokens int
	done         bool
}

// feed appends data to the parse buffer and returns the responses produced
// by every complete line now available. Partial trailing lines stay buffered
// until their newline arrives.
func (p *eventParser) feed(data []byte) []*types.GenerateContentResponse {
	if p.done {
		return nil
	}
	p.buf.Write(data)

	var out []*types.GenerateContentResponse
	for {
		raw := p.buf.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			return out
		}
		line := string(raw[:i])
		p.buf.Next(i + 1)

		if resp := p.processLine(line); resp != nil {
			out = append(out, resp)
		}
		if p.done {
			return out
		}
	}
}

// processLine handles one SSE line. Lines that are not data payloads (event
// names, comments, keep-alive blanks) are skipped, as are payloads that fail
// to decode.
func (p *eventParser) processLine(line string) *types.GenerateContentResponse {
	line = strings.TrimSuffix(line, "\r")
	if line == "" || !strings.HasPrefix(line, "data:") {
		return nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return nil
	}
	if payload == doneSentinel {
		p.done = true
		return nil
	}

	var ev streamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("claude: skipping malformed stream event: %v", err)
		return nil
	}
	return p.handleEvent(&ev)
}

func (p *eventParser) handleEvent(ev *streamEvent) *types.GenerateContentResponse {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			p.responseID = ev.Message.ID
			if ev.Message.Usage != nil {
				p.inputTokens = ev.Message.Usage.InputTokens
			}
		}
		return nil

	case "content_block_delta":
		if ev.Delta == nil || ev.Delta.Text == "" {
			return nil
		}
		return &types.GenerateContentResponse{
			ResponseID: p.responseID,
			Candidates: []types.Candidate{{
				Content: types.Content{
					Role:  types.RoleModel,
					Parts: []types.Part{{Text: ev.Delta.Text}},
				},
			}},
			UsageMetadata: usageFromWire(p.inputTokens, p.outputTokens),
		}

	case "message_delta":
		// Updates the running output counter only; the next text delta
		// carries it. No final aggregate item is synthesized.
		if ev.Usage != nil {
			p.outputTokens = ev.Usage.OutputTokens
		}
		return nil

	case "message_stop":
		p.done = true
		return nil
	}

	// content_block_start, content_block_stop, ping.
	return nil
}

// stream adapts an HTTP response body to GenerateContentStream. Next and
// Close share a mutex so Close can race a consumer safely.
type stream struct {
	mu      sync.Mutex
	body    io.ReadCloser
	parser  eventParser
	pending []*types.GenerateContentResponse
	readBuf []byte
	closed  bool
}

func newStream(body io.ReadCloser) *stream {
	return &stream{
		body:    body,
		readBuf: make([]byte, 4096),
	}
}

// Next returns the next partial response. It returns io.EOF when the stream
// terminates, whether by message_stop, the done sentinel, or the connection
// closing.
func (s *stream) Next() (*types.GenerateContentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if len(s.pending) > 0 {
			resp := s.pending[0]
			s.pending = s.pending[1:]
			return resp, nil
		}
		if s.closed || s.parser.done {
			return nil, io.EOF
		}

		n, err := s.body.Read(s.readBuf)
		if n > 0 {
			s.pending = s.parser.feed(s.readBuf[:n])
		}
		if err != nil {
			if len(s.pending) > 0 {
				continue
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

// Close releases the underlying connection. It is idempotent.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
