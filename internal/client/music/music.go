// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package music implements the music capability client (spec.md
// §4.C/§4.D) over MPRIS, adapted from the teacher's modules/media: the
// same Info/PlaybackStatus position-tracking model (snapshotting the
// playback position whenever rate or status changes, so Position()
// can be computed on demand between updates), rebuilt on top of the
// shared PropertiesWatcher instead of a bespoke dbus signal loop.
package music

import (
	"fmt"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/ferrobar/ferrobar/base/watchers/dbus"
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// BusType selects which bus a Client connects to; overridden in tests.
var BusType = dbus.Session

// PlaybackStatus mirrors the mpris PlaybackStatus property.
type PlaybackStatus string

const (
	Playing      PlaybackStatus = "Playing"
	Paused       PlaybackStatus = "Paused"
	Stopped      PlaybackStatus = "Stopped"
	Disconnected PlaybackStatus = ""
)

// Info is an MPRIS player snapshot.
type Info struct {
	PlaybackStatus PlaybackStatus
	Shuffle        bool
	Artist         string
	AlbumArtist    string
	Album          string
	Title          string
	ArtURL         string
	Length         time.Duration

	lastPosition time.Duration
	lastUpdated  time.Time
	rate         float64
	trackID      string
}

func (i Info) Paused() bool      { return i.PlaybackStatus == Paused }
func (i Info) Playing() bool     { return i.PlaybackStatus == Playing }
func (i Info) Stopped() bool     { return i.PlaybackStatus == Stopped }
func (i Info) Connected() bool   { return i.PlaybackStatus != Disconnected }

// Position computes the current track position based on the last
// update from the player, projecting forward at the last known rate.
func (i Info) Position() time.Duration {
	if i.PlaybackStatus != Playing {
		return i.lastPosition
	}
	elapsed := time.Now().Sub(i.lastUpdated)
	return i.lastPosition + time.Duration(float64(elapsed)*i.rate)
}

// Client watches a single MPRIS player over the session bus, e.g.
// "org.mpris.MediaPlayer2.spotify".
type Client struct {
	dest    string
	watcher *dbus.PropertiesWatcher
	broad   *chanx.Broadcaster[Info]
	info    Info
	stop    chan struct{}
}

const playerIface = "org.mpris.MediaPlayer2.Player"

// New constructs a client for the named MPRIS player (e.g. "spotify",
// matching its "org.mpris.MediaPlayer2.spotify" bus name).
func New(playerName string) (*Client, error) {
	dest := fmt.Sprintf("org.mpris.MediaPlayer2.%s", playerName)
	w := dbus.WatchProperties(
		BusType, dest, godbus.ObjectPath("/org/mpris/MediaPlayer2"), playerIface,
		[]string{"PlaybackStatus", "Shuffle", "Metadata", "Rate", "Position"},
	)
	c := &Client{dest: dest, watcher: w, broad: chanx.NewBroadcaster[Info](), stop: make(chan struct{})}
	w.AddSignalHandler("Seeked", c.onSeeked)
	log.Register(c, "music:"+playerName)
	c.info = c.computeInfo()
	go c.run()
	return c, nil
}

func (c *Client) onSeeked(sig *dbus.Signal, fetch dbus.Fetcher) map[string]interface{} {
	if len(sig.Body) == 0 {
		return nil
	}
	return map[string]interface{}{"Position": sig.Body[0]}
}

// Subscribe returns a live feed of player snapshots.
func (c *Client) Subscribe() *chanx.Subscription[Info] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the current snapshot without subscribing.
func (c *Client) State() Info { return c.info }

func (c *Client) Play() error      { return c.call("Play") }
func (c *Client) Pause() error     { return c.call("Pause") }
func (c *Client) PlayPause() error { return c.call("PlayPause") }
func (c *Client) Stop() error      { return c.call("Stop") }
func (c *Client) Next() error      { return c.call("Next") }
func (c *Client) Previous() error  { return c.call("Previous") }

// Seek moves the playback position of the current track by offset,
// relative to the current position (negative offsets seek backwards).
func (c *Client) Seek(offset time.Duration) error {
	return c.call("Seek", int64(offset/time.Microsecond))
}

func (c *Client) call(method string, args ...interface{}) error {
	_, err := c.watcher.Call(method, args...)
	return err
}

// Close stops the watcher and the broadcaster.
func (c *Client) Close() {
	close(c.stop)
	c.watcher.Unsubscribe()
	c.broad.Close()
}

func (c *Client) run() {
	for {
		select {
		case <-c.watcher.Updates:
			c.info = c.computeInfo()
			c.broad.Publish(c.info)
		case <-c.stop:
			return
		}
	}
}

func (c *Client) computeInfo() Info {
	props := c.watcher.Get()
	i := c.info

	if status, ok := props["PlaybackStatus"].(string); ok {
		i.setPlaybackStatus(PlaybackStatus(status))
	} else if i.PlaybackStatus == "" {
		i.PlaybackStatus = Disconnected
	}
	if shuffle, ok := props["Shuffle"].(bool); ok {
		i.Shuffle = shuffle
	}
	if rate, ok := props["Rate"].(float64); ok {
		i.snapshotPosition()
		i.rate = rate
	}
	if pos, ok := props["Position"]; ok {
		i.lastUpdated = time.Now()
		i.lastPosition = time.Duration(asMicros(pos)) * time.Microsecond
	}
	if metadata, ok := props["Metadata"].(map[string]godbus.Variant); ok {
		i.applyMetadata(metadata)
	}
	return i
}

func (i *Info) setPlaybackStatus(status PlaybackStatus) {
	old := i.PlaybackStatus
	i.PlaybackStatus = status
	if old == status {
		return
	}
	switch status {
	case Playing:
		if old == Paused {
			i.lastUpdated = time.Now()
		}
	case Paused:
		if old == Playing {
			i.snapshotPosition()
		}
	case Stopped:
		i.lastPosition = 0
		i.lastUpdated = time.Now()
	}
}

func (i *Info) snapshotPosition() {
	if i.rate == 0 {
		return
	}
	now := time.Now()
	elapsed := now.Sub(i.lastUpdated)
	i.lastPosition += time.Duration(float64(elapsed) * i.rate)
	i.lastUpdated = now
}

func (i *Info) applyMetadata(metadata map[string]godbus.Variant) {
	i.Length = 0
	if length, ok := metadata["mpris:length"]; ok {
		i.Length = time.Duration(asMicros(length.Value())) * time.Microsecond
	}
	i.Artist = firstOf(metadata, "xesam:artist")
	i.AlbumArtist = firstOf(metadata, "xesam:albumArtist")
	if album, ok := metadata["xesam:album"]; ok {
		i.Album, _ = album.Value().(string)
	}
	if title, ok := metadata["xesam:title"]; ok {
		i.Title, _ = title.Value().(string)
	}
	if art, ok := metadata["mpris:artUrl"]; ok {
		i.ArtURL, _ = art.Value().(string)
	}
	trackID := ""
	if id, ok := metadata["mpris:trackid"]; ok {
		trackID = fmt.Sprint(id.Value())
	}
	if trackID != i.trackID {
		i.lastPosition = 0
		i.lastUpdated = time.Now()
		i.trackID = trackID
	}
}

func firstOf(metadata map[string]godbus.Variant, key string) string {
	v, ok := metadata[key]
	if !ok {
		return ""
	}
	artists, _ := v.Value().([]string)
	if len(artists) == 0 {
		return ""
	}
	return artists[0]
}

func asMicros(v interface{}) int64 {
	if variant, ok := v.(godbus.Variant); ok {
		v = variant.Value()
	}
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
