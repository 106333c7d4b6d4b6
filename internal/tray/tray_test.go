package tray

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"kmrelay/internal/relay"
)

type fakeRelay struct {
	paused bool
	stats  relay.Stats
}

func (f *fakeRelay) Pause(p bool)       { f.paused = p }
func (f *fakeRelay) Paused() bool       { return f.paused }
func (f *fakeRelay) Stats() relay.Stats { return f.stats }

func TestTogglePause(t *testing.T) {
	r := &fakeRelay{}
	tr := New(r, "127.0.0.1:12345", nil, nil)

	tr.togglePause()
	assert.True(t, r.paused)
	tr.togglePause()
	assert.False(t, r.paused)
}

func TestTooltip(t *testing.T) {
	st := relay.Stats{Received: 9, Forwarded: 7, Rejected: 2}
	assert.Equal(t, "kmrelay forwarding on 127.0.0.1:12345\n7 forwarded, 2 rejected", tooltip("127.0.0.1:12345", st, false))
	assert.Contains(t, tooltip("0.0.0.0:1", st, true), "paused")
}

func TestIconSizeMatchesDirectory(t *testing.T) {
	icon := getIcon()
	size := binary.LittleEndian.Uint32(icon[14:18])
	offset := binary.LittleEndian.Uint32(icon[18:22])
	assert.Equal(t, len(icon), int(offset+size))
}
