package netd

import (
	"io"
	"net"
	"time"

	"github.com/shazow/rateio"
)

type limitedConn struct {
	net.Conn
	io.Reader // Our rate-limited io.Reader for net.Conn
}

func (r *limitedConn) Read(p []byte) (n int, err error) {
	return r.Reader.Read(p)
}

// ReadLimitConn returns a net.Conn whose io.Reader interface is rate-limited by limiter.
func ReadLimitConn(conn net.Conn, limiter rateio.Limiter) net.Conn {
	return &limitedConn{
		Conn:   conn,
		Reader: rateio.NewReader(conn, limiter),
	}
}

// inputLimiter allows Amount bytes per Frequency, after an initial burst.
type inputLimiter struct {
	Amount    int
	Frequency time.Duration

	numRead  int
	timeRead time.Time
}

// NewInputLimiter returns a rateio.Limiter with sensible defaults for
// telling people typing apart from bots flooding.
func NewInputLimiter() rateio.Limiter {
	return &inputLimiter{
		Amount:    2 << 14, // ~32kb a minute, plenty for typing and pasting.
		Frequency: time.Minute,
		numRead:   -1024 * 1024, // 1mb burst, enough for a shared file.
		timeRead:  time.Now().Add(time.Minute),
	}
}

// Count applies n bytes to the limiter.
func (limit *inputLimiter) Count(n int) error {
	now := time.Now()
	if now.After(limit.timeRead) {
		limit.numRead = 0
		limit.timeRead = now.Add(limit.Frequency)
	}
	limit.numRead += n
	if limit.numRead > limit.Amount {
		return rateio.ErrRateExceeded
	}
	return nil
}
