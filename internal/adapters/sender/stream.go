package sender

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// Stream delivers results to a pair of writers, normally the process's stdout and stderr.
type Stream struct {
	out    io.Writer
	errOut io.Writer
}

func NewStream(out, errOut io.Writer) *Stream {
	return &Stream{out: out, errOut: errOut}
}

func (s *Stream) SendResult(encoded string) error {
	if _, err := fmt.Fprintln(s.out, encoded); err != nil {
		log.Error().Err(err).Msg("failed to write result")
		return fmt.Errorf("error writing result %w", err)
	}

	return nil
}

// NotifyAndReturnError writes err as a single "Error: <message>" line.
func (s *Stream) NotifyAndReturnError(err error) error {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if _, writeErr := fmt.Fprintf(s.errOut, "Error: %s\n", msg); writeErr != nil {
		log.Warn().Err(writeErr).Msg("failed to report error")
	}

	return err
}
