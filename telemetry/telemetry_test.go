package telemetry

import (
	"bufio"
	"encoding/json"
	"net"
	"reflect"
	"testing"
	"time"
)

func TestSampleRoundTripsEachVariant(t *testing.T) {
	samples := []Sample{
		{Kind: KindGpuInfo, GpuInfoPrimary: RenderDeviceInfo{Name: "primary", Type: DeviceDiscrete}, GpuInfoSecondary: RenderDeviceInfo{Name: "secondary", Type: DeviceIntegrated}},
		{Kind: KindPrimarySingleGpu, PrimarySingleGpu: Timings{Entries: []TimingEntry{{Name: "zpass", Duration: 2 * time.Millisecond}}, Total: 5 * time.Millisecond}},
		{Kind: KindPrimaryMultiGpu, PrimaryMultiGpu: Timings{Total: time.Millisecond}},
		{Kind: KindSecondaryMultiGpu, SecondaryMultiGpu: Timings{Total: 3 * time.Millisecond}},
		{Kind: KindSingleCpuTotal, SingleCpuTotal: 16 * time.Millisecond},
		{Kind: KindMultiCpuTotal, MultiCpuTotal: 12 * time.Millisecond},
	}

	for _, want := range samples {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal %+v: %v", want, err)
		}
		var got Sample
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
		}
	}
}

func TestSampleMarshalRejectsUnknownKind(t *testing.T) {
	if _, err := json.Marshal(Sample{Kind: Kind(99)}); err == nil {
		t.Fatal("expected an error for an unrecognized sample kind")
	}
}

func TestSampleUnmarshalRejectsEmptyObject(t *testing.T) {
	var s Sample
	if err := json.Unmarshal([]byte(`{}`), &s); err == nil {
		t.Fatal("expected an error for a wire object with no variant key")
	}
}

func TestEmitterWritesOneJSONLinePerSample(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	e := &Emitter{conn: client, w: bufio.NewWriter(client)}
	defer e.Close()

	done := make(chan error, 1)
	go func() { done <- e.Emit(Sample{Kind: KindSingleCpuTotal, SingleCpuTotal: 4 * time.Millisecond}) }()

	line, err := bufio.NewReader(server).ReadString('\n')
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("emit: %v", err)
	}

	var got Sample
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("unmarshal line %q: %v", line, err)
	}
	if got.Kind != KindSingleCpuTotal || got.SingleCpuTotal != 4*time.Millisecond {
		t.Fatalf("unexpected sample over the wire: %+v", got)
	}
}
