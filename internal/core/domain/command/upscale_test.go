package command

import (
	"context"
	"errors"
	"pbox-upscaler/internal/core/domain"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockUpscaleService struct {
	response string
	err      error
	input    string
	deadline bool
}

func (m *MockUpscaleService) UpscaleBase64(ctx context.Context, text string) (string, error) {
	m.input = text
	_, m.deadline = ctx.Deadline()
	return m.response, m.err
}

func (m *MockUpscaleService) Stats() domain.SlotStats {
	return domain.SlotStats{}
}

type MockResultSender struct {
	sendErr error
	Result  string
	Errors  []string
}

func (m *MockResultSender) SendResult(encoded string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.Result = encoded
	return nil
}

func (m *MockResultSender) NotifyAndReturnError(err error) error {
	m.Errors = append(m.Errors, err.Error())
	return err
}

type failingReader struct{}

func (failingReader) Read(_ []byte) (int, error) {
	return 0, errors.New("mock error")
}

func TestNewUpscale(t *testing.T) {
	u := NewUpscale(&MockUpscaleService{}, &MockResultSender{}, strings.NewReader(""), "upscale")

	assert.NotNil(t, u)
	assert.Equal(t, "upscale", u.GetCommand())
}

func TestUpscaleRunSuccessful(t *testing.T) {
	svc := &MockUpscaleService{response: "result"}
	ms := &MockResultSender{}

	u := NewUpscale(svc, ms, strings.NewReader("\n  aGVsbG8=  \n"), "upscale")
	err := u.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "aGVsbG8=", svc.input)
	assert.False(t, svc.deadline)
	assert.Equal(t, "result", ms.Result)
	assert.Empty(t, ms.Errors)
}

func TestUpscaleRunWithTimeout(t *testing.T) {
	svc := &MockUpscaleService{response: "result"}

	u := NewUpscale(svc, &MockResultSender{}, strings.NewReader("aGVsbG8="), "upscale")
	require.NoError(t, u.Run(context.Background(), time.Minute))

	assert.True(t, svc.deadline)
}

func TestUpscaleRunServiceFailed(t *testing.T) {
	svc := &MockUpscaleService{err: domain.ErrDecode}
	ms := &MockResultSender{}

	u := NewUpscale(svc, ms, strings.NewReader("!!"), "upscale")
	err := u.Run(context.Background(), 0)

	require.ErrorIs(t, err, domain.ErrDecode)
	assert.Empty(t, ms.Result)
	assert.Equal(t, []string{"failed to decode image"}, ms.Errors)
}

func TestUpscaleRunReadFailed(t *testing.T) {
	svc := &MockUpscaleService{response: "result"}
	ms := &MockResultSender{}

	u := NewUpscale(svc, ms, failingReader{}, "upscale")
	err := u.Run(context.Background(), 0)

	require.Error(t, err)
	assert.Equal(t, []string{"failed to read input: mock error"}, ms.Errors)
	assert.Empty(t, svc.input)
}

func TestUpscaleRunSendFailed(t *testing.T) {
	ms := &MockResultSender{sendErr: errors.New("mock error")}

	u := NewUpscale(&MockUpscaleService{response: "result"}, ms, strings.NewReader("aGVsbG8="), "upscale")
	err := u.Run(context.Background(), 0)

	require.EqualError(t, err, "mock error")
	assert.Equal(t, []string{"mock error"}, ms.Errors)
}
