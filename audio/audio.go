// Package audio provides microphone capture behind a small platform-neutral
// interface: PulseAudio on Linux, miniaudio everywhere else.
package audio

// DataCallback receives raw little-endian PCM16 data as it is captured.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	// NewCapture builds a capture device for the given source (nil means the
	// system default). The callback is fixed for the device's lifetime.
	NewCapture(device *DeviceInfo, config CaptureConfig, cb DataCallback) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
}
