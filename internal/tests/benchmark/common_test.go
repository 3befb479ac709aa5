package benchmark

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/yndnr/onvifmesh-go/pkg/guard"
)

// FleetSizes defines the device counts for benchmarking.
var FleetSizes = []int{16, 256, 1024, 4096}

// SmallFleetSizes for quick benchmarks.
var SmallFleetSizes = []int{16, 256}

// camera is a minimal guarded object.
type camera struct {
	guard.Guard
	endpoint string
}

func newCamera(i int) *camera {
	return &camera{endpoint: fmt.Sprintf("http://192.0.2.%d:%d/onvif/device_service", i%250+1, 8000+i/250)}
}

func endpointOf(c *camera) string { return c.endpoint }

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithFleetSizes runs a benchmark function with various fleet sizes.
func runWithFleetSizes(b *testing.B, sizes []int, benchFn func(b *testing.B, size int)) {
	for _, size := range sizes {
		b.Run(fmt.Sprintf("devices_%d", size), func(b *testing.B) {
			benchFn(b, size)
		})
	}
}
