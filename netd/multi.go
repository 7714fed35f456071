package netd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// MultiError collects the errors of several operations that were all
// attempted.
type MultiError []error

func (e MultiError) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	default:
		errs := []string{}
		for _, err := range e {
			errs = append(errs, err.Error())
		}
		return fmt.Sprintf("%d errors: %s", len(errs), strings.Join(errs, "; "))
	}
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e
}

// MultiCloser closes several listeners as one. Every closer is closed even if
// an earlier one fails; closers that were already closed are not an error.
// Failures of closers with an address, such as listeners, name it.
type MultiCloser []io.Closer

func (c MultiCloser) Close() error {
	errs := MultiError{}
	for _, closer := range c {
		err := closer.Close()
		if err == nil || errors.Is(err, net.ErrClosed) {
			continue
		}
		if l, ok := closer.(interface{ Addr() net.Addr }); ok {
			err = fmt.Errorf("%s: %w", l.Addr(), err)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
