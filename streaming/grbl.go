package streaming

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/tarm/serial"

	"github.com/kennylevinsen/gocam/gcode"
)

// Grbl's serial receive buffer.
const grblBuffer = 127

var (
	ErrNoGrbl = errors.New("unable to detect initialized Grbl")
	ErrGrbl   = errors.New("error from Grbl")
	ErrAlarm  = errors.New("alarm from Grbl")
)

type Level int

const (
	LevelInfo Level = iota
	LevelOk
	LevelError
	LevelAlarm
)

type Result struct {
	Level   Level
	Message string
}

func parseResult(line string) Result {
	b := strings.TrimSpace(line)
	lower := strings.ToLower(b)
	switch {
	case lower == "ok":
		return Result{LevelOk, ""}
	case strings.HasPrefix(lower, "error"):
		return Result{LevelError, strings.TrimLeft(b[5:], ": ")}
	case strings.HasPrefix(lower, "alarm"):
		return Result{LevelAlarm, strings.TrimLeft(b[5:], ": ")}
	}
	return Result{LevelInfo, b}
}

type GrblStreamer struct {
	Logger *log.Logger

	port   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer
}

func (s *GrblStreamer) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	} else {
		log.Printf(format, args...)
	}
}

func (s *GrblStreamer) Connect(name string, baud int) error {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return err
	}
	return s.Attach(port)
}

// Attach takes over an open port and waits for Grbl's greeting.
func (s *GrblStreamer) Attach(port io.ReadWriteCloser) error {
	s.port = port
	s.reader = bufio.NewReader(port)
	s.writer = bufio.NewWriter(port)

	for {
		c, err := s.reader.ReadString('\n')
		m := strings.TrimSpace(c)
		if strings.HasPrefix(m, "Grbl ") && strings.HasSuffix(m, "['$' for help]") {
			s.logf("Grbl version %s initialized", strings.Fields(m)[1])
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoGrbl, err)
		}
	}
}

// Stop soft-resets the controller and closes the port.
func (s *GrblStreamer) Stop() {
	if s.port == nil {
		return
	}
	_, _ = s.port.Write([]byte{0x18, '\n'})
	s.port.Close()
	s.port = nil
}

var (
	toolChange  = &gcode.Word{Address: 'M', Command: 6}
	unsupported = map[gcode.Word]string{
		{Address: 'G', Command: 41}: "cutter compensation",
		{Address: 'G', Command: 42}: "cutter compensation",
		{Address: 'M', Command: 7}:  "mist coolant",
	}
)

// Check rejects documents using what Grbl cannot do.
func (s *GrblStreamer) Check(doc *gcode.Document) error {
	for idx, block := range doc.Blocks {
		for _, n := range block.Nodes {
			if w, ok := n.(*gcode.Word); ok {
				if what, bad := unsupported[*w]; bad {
					return fmt.Errorf("block %d: Grbl does not support %s", idx+1, what)
				}
			}
		}
	}
	return nil
}

// Blocks Grbl has no use for are counted as done without being sent.
func skip(block gcode.Block) bool {
	if block.BlockDelete || block.IncludesOneOf(toolChange) {
		return true
	}
	for _, n := range block.Nodes {
		if _, ok := n.(*gcode.Comment); !ok {
			return false
		}
	}
	return true
}

// Send streams doc, keeping at most grblBuffer bytes unacknowledged. The
// number of completed blocks is sent on progress, which is closed on return.
func (s *GrblStreamer) Send(doc *gcode.Document, precision int, progress chan<- int) error {
	defer close(progress)
	if err := s.Check(doc); err != nil {
		return err
	}

	var (
		length, done int
		inflight     []int
	)

	// Waits for one reply and retires the oldest line on ok.
	handleRes := func() error {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading from Grbl: %w", err)
		}
		res := parseResult(line)
		switch res.Level {
		case LevelError:
			return fmt.Errorf("%w: %s", ErrGrbl, res.Message)
		case LevelAlarm:
			return fmt.Errorf("%w: %s", ErrAlarm, res.Message)
		case LevelInfo:
			if res.Message != "" {
				s.logf("Received info from Grbl: %s", res.Message)
			}
		default:
			length -= inflight[0]
			inflight = inflight[1:]
			done++
			progress <- done
		}
		return nil
	}

	for _, block := range doc.Blocks {
		if skip(block) {
			done++
			progress <- done
			continue
		}
		x := block.Export(precision) + "\n"

		// If Grbl is full...
		for len(inflight) > 0 && length+len(x) > grblBuffer {
			if err := handleRes(); err != nil {
				return err
			}
		}

		if _, err := s.writer.WriteString(x); err != nil {
			return fmt.Errorf("sending to Grbl: %w", err)
		}
		if err := s.writer.Flush(); err != nil {
			return fmt.Errorf("sending to Grbl: %w", err)
		}
		length += len(x)
		inflight = append(inflight, len(x))
	}

	for len(inflight) > 0 {
		if err := handleRes(); err != nil {
			return err
		}
	}
	return nil
}
