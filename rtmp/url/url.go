// Package url parses RTMP URLs of the form rtmp://host[:port]/app/stream.
package url

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const DefaultPort = 1935

var (
	ErrScheme  = errors.New("url: not an rtmp:// url")
	ErrHost    = errors.New("url: missing host")
	ErrPort    = errors.New("url: invalid port")
	ErrApp     = errors.New("url: missing app")
	ErrStream  = errors.New("url: missing stream name")
	ErrInvalid = errors.New("url: invalid url")
)

type URL struct {
	Host     string
	Port     int
	App      string
	Stream   string
	RawQuery string
}

// Parse parses an RTMP URL. The first path element is the app, the remaining
// path is the stream name. The port defaults to 1935.
func Parse(rawurl string) (*URL, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if !strings.EqualFold(u.Scheme, "rtmp") {
		return nil, ErrScheme
	}

	r := &URL{
		Host:     u.Hostname(),
		Port:     DefaultPort,
		RawQuery: u.RawQuery,
	}

	if len(r.Host) == 0 {
		return nil, ErrHost
	}

	if port := u.Port(); len(port) != 0 {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, ErrPort
		}

		r.Port = p
	}

	elements := SplitPath(u.Path)
	if len(elements) == 0 || len(elements[0]) == 0 {
		return nil, ErrApp
	}

	r.App = elements[0]

	if len(elements) < 2 {
		return nil, ErrStream
	}

	r.Stream = strings.Join(elements[1:], "/")

	return r, nil
}

// Address returns host:port.
func (u *URL) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// Path returns the stream path /app/stream.
func (u *URL) Path() string {
	return StreamPath(u.App, u.Stream)
}

// TcURL returns the URL of the app as sent in the connect command.
func (u *URL) TcURL() string {
	return "rtmp://" + u.Address() + "/" + u.App
}

// StreamName returns the stream name including the query.
func (u *URL) StreamName() string {
	if len(u.RawQuery) == 0 {
		return u.Stream
	}

	return u.Stream + "?" + u.RawQuery
}

func (u *URL) String() string {
	return u.TcURL() + "/" + u.StreamName()
}

// StreamPath joins app and stream name to the path a session is known by.
// A query in the stream name is not part of the path.
func StreamPath(app, stream string) string {
	stream, _, _ = strings.Cut(stream, "?")

	return "/" + strings.Trim(app, "/") + "/" + strings.Trim(stream, "/")
}

// SplitPath returns the non-empty elements of a path.
func SplitPath(path string) []string {
	elements := []string{}

	for _, e := range strings.Split(path, "/") {
		if len(e) == 0 {
			continue
		}

		elements = append(elements, e)
	}

	return elements
}
