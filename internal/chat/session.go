package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bz888/roichat/internal/logger"
)

// ErrNotArmed is returned by Download when no reply has offered a document.
var ErrNotArmed = errors.New("no download available")

// Transport carries the full transcript to the chat endpoint and returns the
// decoded reply.
type Transport interface {
	Send(ctx context.Context, messages []Message) (Reply, error)
}

// Renderer is the visible side of a session.
type Renderer interface {
	RenderMessage(msg Message)
	RenderDownload(filename string, armed bool)
}

// Saver persists a downloaded document and returns where it ended up.
type Saver interface {
	Save(filename, contentType string, data []byte) (string, error)
}

// SendError wraps a failed request. The user message stays in the transcript.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "send failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type armed struct {
	attachment Attachment
	generation uint64
}

// Session owns one conversation: the transcript and the pending download.
type Session struct {
	transport Transport
	renderer  Renderer
	saver     Saver
	log       *logger.Logger

	mu         sync.Mutex
	transcript []Message
	pending    *armed
	generation uint64
	// lastArmed is the newest generation that ever armed a download.
	lastArmed uint64
	inflight   int
}

func NewSession(transport Transport, renderer Renderer, saver Saver) *Session {
	return &Session{
		transport: transport,
		renderer:  renderer,
		saver:     saver,
		log:       logger.NewLogger("chat"),
	}
}

// Append adds a message to the transcript and renders it.
func (s *Session) Append(role Role, content string) {
	s.push(Message{Role: role, Content: content})
}

func (s *Session) push(msg Message) []Message {
	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	snapshot := make([]Message, len(s.transcript))
	copy(snapshot, s.transcript)
	s.mu.Unlock()

	if s.renderer != nil {
		s.renderer.RenderMessage(msg)
	}
	return snapshot
}

// Send appends the trimmed text as a user message, posts the whole transcript
// and appends the assistant reply. Blank text is ignored.
//
// Overlapping calls are not serialised here; callers that care use Busy.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.inflight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	messages := s.push(Message{Role: RoleUser, Content: text})
	s.log.Debug("sending transcript of ", len(messages), " messages")

	reply, err := s.transport.Send(ctx, messages)
	if err != nil {
		s.log.Error("chat request failed: ", err)
		return &SendError{Err: err}
	}

	s.push(Message{Role: RoleAssistant, Content: reply.Reply})

	if att, ok := reply.Attachment(); ok {
		s.arm(gen, att)
	}
	return nil
}

// arm binds the attachment to the download control unless a reply from a
// newer submission already did, even one whose download was since taken.
func (s *Session) arm(gen uint64, att Attachment) {
	s.mu.Lock()
	if gen < s.lastArmed {
		s.mu.Unlock()
		s.log.Warn("ignoring attachment from superseded request ", gen)
		return
	}
	s.lastArmed = gen
	s.pending = &armed{attachment: att, generation: gen}
	s.mu.Unlock()

	s.log.Info("download armed: ", att.Filename)
	if s.renderer != nil {
		s.renderer.RenderDownload(att.Filename, true)
	}
}

// Download performs the armed action once: decode, save as a PDF, disarm.
// The binding is claimed up front so concurrent calls cannot both save; it is
// restored when decoding or saving fails.
func (s *Session) Download(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	current := s.pending
	s.pending = nil
	s.mu.Unlock()
	if current == nil {
		return "", ErrNotArmed
	}

	path, err := s.save(current.attachment)
	if err != nil {
		s.mu.Lock()
		if s.pending == nil && current.generation >= s.lastArmed {
			s.pending = current
		}
		s.mu.Unlock()
		return "", err
	}

	if s.renderer != nil && !s.Armed() {
		s.renderer.RenderDownload(current.attachment.Filename, false)
	}
	s.log.Info("saved attachment to ", path)
	return path, nil
}

func (s *Session) save(att Attachment) (string, error) {
	data, err := att.Decode()
	if err != nil {
		return "", err
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		s.log.Warn("attachment ", att.Filename, " does not look like a PDF")
	}

	path, err := s.saver.Save(att.Filename, PDFContentType, data)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", att.Filename, err)
	}
	return path, nil
}

// Transcript returns a copy of the messages exchanged so far.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Busy reports whether a reply is still outstanding.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}
