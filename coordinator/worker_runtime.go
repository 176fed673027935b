package coordinator

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oniz93/business-finder/errkind"
)

// HeartbeatInterval is how often a connected worker sends Heartbeat.
const HeartbeatInterval = 30 * time.Second

// Executor runs the Chain Builder over one Task's relative path and
// reports success or failure.
type Executor func(relativePath string) error

// conn is guarded by writeMu since the request loop and the heartbeat
// goroutine both write to it concurrently.
type workerConn struct {
	net.Conn
	writeMu sync.Mutex
}

func (c *workerConn) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteMessage(c.Conn, msg)
}

// RunWorker runs the worker side of the protocol: connect, start a 30s
// heartbeat, then loop RequestTask -> await reply -> execute an
// AssignTask locally -> TaskComplete, exiting cleanly on
// NoTasksAvailable.
func RunWorker(addr, workerID string, exec Executor) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial coordinator %s: %v", errkind.ErrIO, addr, err)
	}
	defer func() { _ = conn.Close() }()

	wc := &workerConn{Conn: conn}

	stop := make(chan struct{})
	defer close(stop)
	go heartbeatLoop(wc, workerID, stop)

	for {
		if err := wc.send(RequestTask{WorkerID: workerID}); err != nil {
			return err
		}
		reply, err := ReadMessage(conn)
		if err != nil {
			return err
		}

		switch m := reply.(type) {
		case NoTasksAvailable:
			return nil
		case AssignTask:
			execErr := exec(m.RelativePath)
			complete := TaskComplete{TaskID: m.TaskID, Success: execErr == nil}
			if execErr != nil {
				complete.Error = execErr.Error()
			}
			if err := wc.send(complete); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unexpected reply to RequestTask: %T", errkind.ErrProtocol, reply)
		}
	}
}

func heartbeatLoop(wc *workerConn, workerID string, stop <-chan struct{}) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = wc.send(Heartbeat{WorkerID: workerID})
		}
	}
}
