//go:build !linux

package serial

// Port is unavailable on this platform.
type Port struct{}

// OpenPort always fails on this platform
func OpenPort(device string, baud int) (*Port, error) {
	return nil, ErrUnsupportedPlatform
}

func (p *Port) Write(line string) error { return ErrUnsupportedPlatform }

func (p *Port) Close() error { return nil }
