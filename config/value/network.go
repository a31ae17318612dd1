package value

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/datarhei/relay/glob"
	"github.com/datarhei/relay/log"
)

var portOnly = regexp.MustCompile("^[0-9]+$")

// optional address (host?:port)

type Address string

func NewAddress(p *string, val string) *Address {
	*p = val

	return (*Address)(p)
}

func (s *Address) Set(val string) error {
	// A port number alone listens on all interfaces
	if portOnly.MatchString(val) {
		val = ":" + val
	}

	*s = Address(val)

	return nil
}

func (s *Address) String() string {
	return string(*s)
}

func (s *Address) Validate() error {
	if len(*s) == 0 {
		return nil
	}

	_, port, err := net.SplitHostPort(string(*s))
	if err != nil {
		return err
	}

	if !portOnly.MatchString(port) {
		return fmt.Errorf("the port must be numerical")
	}

	return nil
}

func (s *Address) IsEmpty() bool {
	return len(*s) == 0
}

// mandatory address (host?:port)

type MustAddress string

func NewMustAddress(p *string, val string) *MustAddress {
	*p = val

	return (*MustAddress)(p)
}

func (s *MustAddress) Set(val string) error {
	return (*Address)(s).Set(val)
}

func (s *MustAddress) String() string {
	return string(*s)
}

func (s *MustAddress) Validate() error {
	if len(*s) == 0 {
		return fmt.Errorf("an address is required")
	}

	return (*Address)(s).Validate()
}

func (s *MustAddress) IsEmpty() bool {
	return len(*s) == 0
}

// optional base URL of an RTMP server

type RTMPURL string

func NewRTMPURL(p *string, val string) *RTMPURL {
	*p = val

	return (*RTMPURL)(p)
}

func (u *RTMPURL) Set(val string) error {
	*u = RTMPURL(strings.TrimSuffix(val, "/"))

	return nil
}

func (u *RTMPURL) String() string {
	return string(*u)
}

func (u *RTMPURL) Validate() error {
	if len(*u) == 0 {
		return nil
	}

	parsed, err := url.Parse(string(*u))
	if err != nil {
		return err
	}

	if parsed.Scheme != "rtmp" {
		return fmt.Errorf("the scheme must be rtmp")
	}

	if len(parsed.Hostname()) == 0 {
		return fmt.Errorf("a host is required")
	}

	if len(strings.Trim(parsed.Path, "/")) != 0 {
		return fmt.Errorf("the URL must not contain a path")
	}

	return nil
}

func (u *RTMPURL) IsEmpty() bool {
	return len(*u) == 0
}

// list of glob patterns

type GlobList struct {
	StringList
}

func NewGlobList(p *[]string, val []string, separator string) *GlobList {
	return &GlobList{
		StringList: *NewStringList(p, val, separator),
	}
}

func (g *GlobList) Validate() error {
	_, err := glob.NewList(*g.p)

	return err
}

// log level

type LogLevel string

func NewLogLevel(p *string, val string) *LogLevel {
	*p = val

	return (*LogLevel)(p)
}

func (l *LogLevel) Set(val string) error {
	*l = LogLevel(strings.ToLower(val))

	return nil
}

func (l *LogLevel) String() string {
	return string(*l)
}

func (l *LogLevel) Validate() error {
	_, err := log.ParseLevel(string(*l))

	return err
}

func (l *LogLevel) IsEmpty() bool {
	return len(*l) == 0
}
