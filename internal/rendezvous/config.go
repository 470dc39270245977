package rendezvous

import (
	"net"
	"strconv"
)

// Config identifies the rendezvous endpoint a peer registers with.
type Config struct {
	Host   string
	Port   int
	Path   string
	Secure bool
	// Debug is the log verbosity: 0 silent, 1 errors, 2 warnings, 3 all.
	Debug int
}

func DefaultConfig() Config {
	return Config{
		Host:   "localhost",
		Port:   9000,
		Path:   "/",
		Secure: false,
		Debug:  0,
	}
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
