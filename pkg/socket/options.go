package socket

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"golang.org/x/sys/unix"
)

type optionKind int

const (
	kindBool optionKind = iota
	kindInt
	kindTimeval
	kindLinger
	kindString
)

type option struct {
	name string
	kind optionKind
}

// socketOptions lists the SOL_SOCKET options GetOption and SetOption know
// how to marshal.
var socketOptions = map[int]option{
	unix.SO_ACCEPTCONN: {"SO_ACCEPTCONN", kindBool},
	unix.SO_BROADCAST:  {"SO_BROADCAST", kindBool},
	unix.SO_REUSEADDR:  {"SO_REUSEADDR", kindBool},
	unix.SO_KEEPALIVE:  {"SO_KEEPALIVE", kindBool},
	unix.SO_OOBINLINE:  {"SO_OOBINLINE", kindBool},
	unix.SO_DONTROUTE:  {"SO_DONTROUTE", kindBool},
	unix.SO_TIMESTAMP:  {"SO_TIMESTAMP", kindBool},
	unix.SO_NO_CHECK:   {"SO_NO_CHECK", kindBool},
	unix.SO_DEBUG:      {"SO_DEBUG", kindBool},

	unix.SO_RCVBUFFORCE: {"SO_RCVBUFFORCE", kindInt},
	unix.SO_SNDBUFFORCE: {"SO_SNDBUFFORCE", kindInt},
	unix.SO_RCVLOWAT:    {"SO_RCVLOWAT", kindInt},
	unix.SO_SNDLOWAT:    {"SO_SNDLOWAT", kindInt},
	unix.SO_PRIORITY:    {"SO_PRIORITY", kindInt},
	unix.SO_PROTOCOL:    {"SO_PROTOCOL", kindInt},
	unix.SO_DOMAIN:      {"SO_DOMAIN", kindInt},
	unix.SO_SNDBUF:      {"SO_SNDBUF", kindInt},
	unix.SO_RCVBUF:      {"SO_RCVBUF", kindInt},
	unix.SO_ERROR:       {"SO_ERROR", kindInt},
	unix.SO_TYPE:        {"SO_TYPE", kindInt},

	unix.SO_RCVTIMEO: {"SO_RCVTIMEO", kindTimeval},
	unix.SO_SNDTIMEO: {"SO_SNDTIMEO", kindTimeval},

	unix.SO_LINGER: {"SO_LINGER", kindLinger},

	unix.SO_BINDTODEVICE: {"SO_BINDTODEVICE", kindString},
}

func lookupOption(level, opt int) (option, error) {
	if level != unix.SOL_SOCKET {
		return option{}, fmt.Errorf("%w: %d", ErrUnsupportedLevel, level)
	}
	o, ok := socketOptions[opt]
	if !ok {
		return option{}, fmt.Errorf("%w: %d", ErrUnsupportedOption, opt)
	}
	return o, nil
}

// Linger is the value of SO_LINGER.
type Linger struct {
	OnOff  bool
	Linger int // seconds
}

// Fields returns the linger value keyed by its C member names.
func (l Linger) Fields() map[string]any {
	return map[string]any{"l_onoff": l.OnOff, "l_linger": l.Linger}
}

// Timeval is the value of SO_RCVTIMEO and SO_SNDTIMEO.
type Timeval struct {
	Sec  int64
	Usec int64
}

// TimevalOf converts d, rounding down to whole microseconds.
func TimevalOf(d time.Duration) Timeval {
	return Timeval{Sec: int64(d / time.Second), Usec: int64(d % time.Second / time.Microsecond)}
}

// Duration returns tv as a time.Duration.
func (tv Timeval) Duration() time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// Fields returns the timeval keyed by its C member names.
func (tv Timeval) Fields() map[string]any {
	return map[string]any{"tv_sec": tv.Sec, "tv_usec": tv.Usec}
}

// GetOption reads a socket option. The result is a bool, an int, a string, a
// Linger or a Timeval depending on the option.
func (s *Socket) GetOption(level, opt int) (any, error) {
	o, err := lookupOption(level, opt)
	if err != nil {
		return nil, err
	}

	var value any
	switch o.kind {
	case kindBool:
		var v int
		v, err = s.c.GetsockoptInt(level, opt)
		value = v != 0
	case kindInt:
		value, err = s.c.GetsockoptInt(level, opt)
	case kindString:
		value, err = s.c.GetsockoptString(level, opt)
	case kindLinger:
		err = s.control("getsockopt", func(fd int) error {
			l, err := unix.GetsockoptLinger(fd, level, opt)
			if err != nil {
				return err
			}
			value = Linger{OnOff: l.Onoff != 0, Linger: int(l.Linger)}
			return nil
		})
	case kindTimeval:
		err = s.control("getsockopt", func(fd int) error {
			tv, err := unix.GetsockoptTimeval(fd, level, opt)
			if err != nil {
				return err
			}
			value = Timeval{Sec: int64(tv.Sec), Usec: int64(tv.Usec)}
			return nil
		})
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", o.name, err)
	}
	return value, nil
}

// SetOption writes a socket option. Boolean options accept anything that
// converts to a bool, integer options anything that converts to an int.
// SO_LINGER takes a Linger or a map with l_onoff and l_linger. The timeouts
// take a Timeval, a time.Duration or a map with tv_sec and tv_usec.
func (s *Socket) SetOption(level, opt int, value any) error {
	o, err := lookupOption(level, opt)
	if err != nil {
		return err
	}

	switch o.kind {
	case kindBool:
		var v bool
		if v, err = cast.ToBoolE(value); err != nil {
			return fmt.Errorf("%w for %s: %w", ErrOptionValue, o.name, err)
		}
		err = s.c.SetsockoptInt(level, opt, boolInt(v))
	case kindInt:
		var v int
		if v, err = cast.ToIntE(value); err != nil {
			return fmt.Errorf("%w for %s: %w", ErrOptionValue, o.name, err)
		}
		err = s.c.SetsockoptInt(level, opt, v)
	case kindString:
		var v string
		if v, err = cast.ToStringE(value); err != nil {
			return fmt.Errorf("%w for %s: %w", ErrOptionValue, o.name, err)
		}
		err = s.c.SetsockoptString(level, opt, v)
	case kindLinger:
		var l Linger
		if l, err = toLinger(value); err != nil {
			return fmt.Errorf("%w for %s: %w", ErrOptionValue, o.name, err)
		}
		err = s.control("setsockopt", func(fd int) error {
			return unix.SetsockoptLinger(fd, level, opt, &unix.Linger{Onoff: int32(boolInt(l.OnOff)), Linger: int32(l.Linger)})
		})
	case kindTimeval:
		var tv Timeval
		if tv, err = toTimeval(value); err != nil {
			return fmt.Errorf("%w for %s: %w", ErrOptionValue, o.name, err)
		}
		t := unix.NsecToTimeval(tv.Duration().Nanoseconds())
		err = s.control("setsockopt", func(fd int) error {
			return unix.SetsockoptTimeval(fd, level, opt, &t)
		})
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", o.name, err)
	}

	log.WithField("option", o.name).WithField("value", value).Debug("Set socket option")
	return nil
}

func toLinger(value any) (Linger, error) {
	switch v := value.(type) {
	case Linger:
		return v, nil
	case *Linger:
		return *v, nil
	}

	m, err := cast.ToStringMapE(value)
	if err != nil {
		return Linger{}, err
	}
	var l Linger
	if l.OnOff, err = cast.ToBoolE(m["l_onoff"]); err != nil {
		return Linger{}, fmt.Errorf("l_onoff: %w", err)
	}
	if l.Linger, err = cast.ToIntE(m["l_linger"]); err != nil {
		return Linger{}, fmt.Errorf("l_linger: %w", err)
	}
	return l, nil
}

func toTimeval(value any) (Timeval, error) {
	switch v := value.(type) {
	case Timeval:
		return v, nil
	case *Timeval:
		return *v, nil
	case time.Duration:
		return TimevalOf(v), nil
	}

	m, err := cast.ToStringMapE(value)
	if err != nil {
		return Timeval{}, err
	}
	var tv Timeval
	if tv.Sec, err = cast.ToInt64E(m["tv_sec"]); err != nil {
		return Timeval{}, fmt.Errorf("tv_sec: %w", err)
	}
	if tv.Usec, err = cast.ToInt64E(m["tv_usec"]); err != nil {
		return Timeval{}, fmt.Errorf("tv_usec: %w", err)
	}
	return tv, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
