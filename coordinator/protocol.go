package coordinator

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/oniz93/business-finder/errkind"
)

// MaxMessageSize bounds the length-prefixed payload size; both sides
// reject anything larger before reading it.
const MaxMessageSize = 1 << 20 // 1 MiB

// Message is the tagged-union wire message, encoded via encoding/gob
// over a registered concrete type.
type Message interface {
	isMessage()
}

// RequestTask asks the coordinator for the next available task.
type RequestTask struct {
	WorkerID string
}

func (RequestTask) isMessage() {}

// AssignTask replies to RequestTask with a task to execute.
type AssignTask struct {
	TaskID       string
	RelativePath string
}

func (AssignTask) isMessage() {}

// NoTasksAvailable replies to RequestTask when the queue is empty.
type NoTasksAvailable struct{}

func (NoTasksAvailable) isMessage() {}

// TaskComplete reports a finished task; the coordinator sends no reply.
type TaskComplete struct {
	TaskID  string
	Success bool
	Error   string
}

func (TaskComplete) isMessage() {}

// Heartbeat keeps a worker's liveness entry fresh; no reply is sent.
type Heartbeat struct {
	WorkerID string
}

func (Heartbeat) isMessage() {}

func init() {
	gob.Register(RequestTask{})
	gob.Register(AssignTask{})
	gob.Register(NoTasksAvailable{})
	gob.Register(TaskComplete{})
	gob.Register(Heartbeat{})
}

// WriteMessage frames msg as a 4-byte big-endian length prefix followed
// by its gob-encoded payload, issued as a single Write so concurrent
// senders on one connection cannot interleave frames.
func WriteMessage(w io.Writer, msg Message) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return fmt.Errorf("%w: encode message: %v", errkind.ErrSerialization, err)
	}
	if buf.Len() > MaxMessageSize {
		return fmt.Errorf("%w: message of %d bytes exceeds max %d", errkind.ErrProtocol, buf.Len(), MaxMessageSize)
	}
	framed := make([]byte, 4+buf.Len())
	binary.BigEndian.PutUint32(framed[:4], uint32(buf.Len()))
	copy(framed[4:], buf.Bytes())
	if _, err := w.Write(framed); err != nil {
		return fmt.Errorf("%w: write framed message: %v", errkind.ErrIO, err)
	}
	return nil
}

// ReadMessage reads one length-prefixed gob message from r. It returns
// io.EOF, unwrapped, when the length prefix itself hits EOF cleanly (a
// clean disconnect) so callers can distinguish a tidy close from a
// mid-message failure.
func ReadMessage(r io.Reader) (Message, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read length prefix: %v", errkind.ErrIO, err)
	}
	n := binary.BigEndian.Uint32(length[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: message of %d bytes exceeds max %d", errkind.ErrProtocol, n, MaxMessageSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", errkind.ErrIO, err)
	}
	var msg Message
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: decode message: %v", errkind.ErrSerialization, err)
	}
	return msg, nil
}
