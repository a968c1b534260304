package bridge

import (
	"bufio"
	"context"
	"io"
	"log"
	"sync"

	"github.com/synobridge/synobridge/internal/events"
)

// maxLineSize bounds a single NDJSON message on stdin.
const maxLineSize = 10 * 1024 * 1024

// Stdio serves MCP over newline-delimited JSON on stdin/stdout. Log output
// must go to stderr; stdout carries only protocol bytes.
type Stdio struct {
	dispatcher *Dispatcher
	bus        *events.Bus
	in         io.Reader
	out        io.Writer

	writeMu sync.Mutex
}

// NewStdio creates a stdio transport reading from in and writing to out.
func NewStdio(d *Dispatcher, bus *events.Bus, in io.Reader, out io.Writer) *Stdio {
	return &Stdio{dispatcher: d, bus: bus, in: in, out: out}
}

// Run reads messages until EOF or ctx cancellation. EOF is a normal end of
// session, not an error.
func (s *Stdio) Run(ctx context.Context) error {
	s.publishState(events.StateConnected, "")
	defer s.publishState(events.StateStopped, "")

	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errc <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
				}
				log.Println("stdin closed, stdio transport done")
				return nil
			}
			if len(line) == 0 {
				continue
			}
			if resp := s.dispatcher.Dispatch(ctx, line, "stdio"); resp != nil {
				if err := s.write(resp); err != nil {
					return err
				}
			}
		}
	}
}

func (s *Stdio) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		return err
	}
	_, err := s.out.Write([]byte{'\n'})
	return err
}

func (s *Stdio) publishState(state events.TransportState, detail string) {
	if s.bus != nil {
		s.bus.Publish(events.NewTransportStateEvent("stdio", state, detail))
	}
}
