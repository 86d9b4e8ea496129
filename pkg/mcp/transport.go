package mcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Transport is the underlying framed message transport shared by the MCP
// client and server. Messages are JSON payloads delimited with a
// Content-Length header, one complete payload per Send/Receive.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

type streamTransport struct {
	reader      *bufio.Reader
	writer      io.Writer
	readCloser  io.Closer
	writeCloser io.Closer
	writeMu     sync.Mutex
}

// NewStreamTransport frames an arbitrary read/write pair. The closers may be
// nil when the caller owns stream shutdown (for example os.Stdin/os.Stdout).
func NewStreamTransport(r io.Reader, w io.Writer, rc, wc io.Closer) Transport {
	return &streamTransport{
		reader:      bufio.NewReader(r),
		writer:      w,
		readCloser:  rc,
		writeCloser: wc,
	}
}

func (t *streamTransport) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	return writeFrame(t.writer, payload)
}

func (t *streamTransport) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readFrame(t.reader)
}

func (t *streamTransport) Close() error {
	var err error
	if t.writeCloser != nil {
		if e := t.writeCloser.Close(); e != nil {
			err = e
		}
	}
	if t.readCloser != nil {
		if e := t.readCloser.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func writeFrame(w io.Writer, payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			value := strings.TrimSpace(line[len("content-length:"):])
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("mcp: invalid content length: %w", err)
			}
			length = parsed
		}
	}
	if length < 0 {
		return nil, errors.New("mcp: missing Content-Length header")
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
