// Package telemetry implements the benchmark wire protocol the core
// emits per frame: a tagged-union Sample type, newline-delimited JSON
// over a net.Conn, grounded on the original harness's TimingsInfo enum
// (fotia-bench/src/main.rs). Aggregation into averages and CSV export
// is the external collector's job, out of this core's scope — this
// package only implements the wire type and the write side.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// DeviceType classifies an adapter the way the collector groups
// results by hardware class.
type DeviceType int

const (
	DeviceDiscrete DeviceType = iota
	DeviceIntegrated
	DeviceCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceDiscrete:
		return "Discrete"
	case DeviceIntegrated:
		return "Integrated"
	case DeviceCPU:
		return "Cpu"
	default:
		return "Unknown"
	}
}

func (t DeviceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *DeviceType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Discrete":
		*t = DeviceDiscrete
	case "Integrated":
		*t = DeviceIntegrated
	case "Cpu":
		*t = DeviceCPU
	default:
		return fmt.Errorf("telemetry: unknown device type %q", s)
	}
	return nil
}

// RenderDeviceInfo describes one adapter, reported once at startup.
type RenderDeviceInfo struct {
	Name                          string     `json:"name"`
	ID                            int        `json:"id"`
	CrossAdapterTextureSupported  bool       `json:"is_cross_adapter_texture_supported"`
	UMA                           bool       `json:"is_uma"`
	Type                          DeviceType `json:"ty"`
	CopyTimestampSupport          bool       `json:"copy_timestamp_support"`
}

// TimingEntry is one named pass's duration within a frame, resolved
// from the command encoder's timestamp query.
type TimingEntry struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Timings is one frame's per-pass breakdown plus the frame's total.
type Timings struct {
	Entries []TimingEntry `json:"timings"`
	Total   time.Duration `json:"total"`
}

// Sample is one wire message. Exactly one field is set, matching the
// source's externally-tagged Rust enum; the zero value of every other
// field stays absent from the wire via Kind-driven marshalling.
type Sample struct {
	Kind Kind

	GpuInfoPrimary   RenderDeviceInfo
	GpuInfoSecondary RenderDeviceInfo

	PrimarySingleGpu   Timings
	PrimaryMultiGpu     Timings
	SecondaryMultiGpu  Timings

	SingleCpuTotal time.Duration
	MultiCpuTotal  time.Duration
}

// Kind selects which of Sample's variant payloads is meaningful.
type Kind int

const (
	KindGpuInfo Kind = iota
	KindPrimarySingleGpu
	KindPrimaryMultiGpu
	KindSecondaryMultiGpu
	KindSingleCpuTotal
	KindMultiCpuTotal
)

// wireSample is Sample's on-the-wire shape: a single-key object whose
// key names the variant, matching serde's default externally-tagged
// enum representation.
type wireSample struct {
	GpuInfo *struct {
		Primary   RenderDeviceInfo `json:"primary"`
		Secondary RenderDeviceInfo `json:"secondary"`
	} `json:"GpuInfo,omitempty"`
	PrimarySingleGpu  *Timings       `json:"PrimarySingleGpu,omitempty"`
	PrimaryMultiGpu   *Timings       `json:"PrimaryMultiGpu,omitempty"`
	SecondaryMultiGpu *Timings       `json:"SecondaryMultiGpu,omitempty"`
	SingleCpuTotal    *time.Duration `json:"SingleCpuTotal,omitempty"`
	MultiCpuTotal     *time.Duration `json:"MultiCpuTotal,omitempty"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	var w wireSample
	switch s.Kind {
	case KindGpuInfo:
		w.GpuInfo = &struct {
			Primary   RenderDeviceInfo `json:"primary"`
			Secondary RenderDeviceInfo `json:"secondary"`
		}{s.GpuInfoPrimary, s.GpuInfoSecondary}
	case KindPrimarySingleGpu:
		w.PrimarySingleGpu = &s.PrimarySingleGpu
	case KindPrimaryMultiGpu:
		w.PrimaryMultiGpu = &s.PrimaryMultiGpu
	case KindSecondaryMultiGpu:
		w.SecondaryMultiGpu = &s.SecondaryMultiGpu
	case KindSingleCpuTotal:
		w.SingleCpuTotal = &s.SingleCpuTotal
	case KindMultiCpuTotal:
		w.MultiCpuTotal = &s.MultiCpuTotal
	default:
		return nil, fmt.Errorf("telemetry: unknown sample kind %d", s.Kind)
	}
	return json.Marshal(w)
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	var w wireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.GpuInfo != nil:
		*s = Sample{Kind: KindGpuInfo, GpuInfoPrimary: w.GpuInfo.Primary, GpuInfoSecondary: w.GpuInfo.Secondary}
	case w.PrimarySingleGpu != nil:
		*s = Sample{Kind: KindPrimarySingleGpu, PrimarySingleGpu: *w.PrimarySingleGpu}
	case w.PrimaryMultiGpu != nil:
		*s = Sample{Kind: KindPrimaryMultiGpu, PrimaryMultiGpu: *w.PrimaryMultiGpu}
	case w.SecondaryMultiGpu != nil:
		*s = Sample{Kind: KindSecondaryMultiGpu, SecondaryMultiGpu: *w.SecondaryMultiGpu}
	case w.SingleCpuTotal != nil:
		*s = Sample{Kind: KindSingleCpuTotal, SingleCpuTotal: *w.SingleCpuTotal}
	case w.MultiCpuTotal != nil:
		*s = Sample{Kind: KindMultiCpuTotal, MultiCpuTotal: *w.MultiCpuTotal}
	default:
		return fmt.Errorf("telemetry: sample has no recognized variant key")
	}
	return nil
}

// Emitter writes Samples to a collector over a persistent connection,
// one JSON object per line.
type Emitter struct {
	conn net.Conn
	w    *bufio.Writer
}

// Dial opens a connection to a collector listening at addr (the
// config surface's bench_addr).
func Dial(addr string) (*Emitter, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial %s: %w", addr, err)
	}
	return &Emitter{conn: conn, w: bufio.NewWriter(conn)}, nil
}

// Emit writes one sample, flushing immediately so the collector sees
// it without buffering delay.
func (e *Emitter) Emit(s Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("telemetry: marshal sample: %w", err)
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("telemetry: write sample: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("telemetry: write sample: %w", err)
	}
	return e.w.Flush()
}

// Close closes the underlying connection.
func (e *Emitter) Close() error {
	return e.conn.Close()
}
