package benchmark

import (
	"testing"

	"github.com/yndnr/onvifmesh-go/pkg/cmap"
	"github.com/yndnr/onvifmesh-go/pkg/registry"
)

// BenchmarkGuardAddRefUnref benchmarks the resumption check taken by every
// background step.
func BenchmarkGuardAddRefUnref(b *testing.B) {
	c := newCamera(0)
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if !c.AddRef() {
				b.Fatal("AddRef failed on a valid object")
			}
			c.Unref()
		}
	})
}

// BenchmarkGuardInvalidate benchmarks invalidating objects that still hold
// references.
func BenchmarkGuardInvalidate(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := newCamera(i)
		c.AddRef()
		c.Invalidate()
		c.Unref()
	}
}

// BenchmarkRegistryLookup benchmarks endpoint lookups at various fleet
// sizes.
func BenchmarkRegistryLookup(b *testing.B) {
	runWithFleetSizes(b, FleetSizes, func(b *testing.B, size int) {
		r := registry.New(endpointOf)
		cams := make([]*camera, size)
		for i := range cams {
			cams[i] = newCamera(i)
			r.Add(cams[i])
		}

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, ok := r.Lookup(cams[i%size].endpoint); !ok {
				b.Fatal("lookup missed")
			}
		}
	})
}

// BenchmarkRegistrySnapshot benchmarks the copy taken for every listing.
func BenchmarkRegistrySnapshot(b *testing.B) {
	runWithFleetSizes(b, SmallFleetSizes, func(b *testing.B, size int) {
		r := registry.New(endpointOf)
		for i := 0; i < size; i++ {
			r.Add(newCamera(i))
		}

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if len(r.Snapshot()) != size {
				b.Fatal("short snapshot")
			}
		}
		b.StopTimer()
		reportMemory(b, "mem")
	})
}

// BenchmarkRegistryRescan benchmarks a full clear and re-add cycle.
func BenchmarkRegistryRescan(b *testing.B) {
	runWithFleetSizes(b, SmallFleetSizes, func(b *testing.B, size int) {
		r := registry.New(endpointOf)

		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			for j := 0; j < size; j++ {
				r.AddUnique(newCamera(j))
			}
			r.Clear()
		}
	})
}

// BenchmarkShardedMapParallel benchmarks the ID index under concurrent
// readers with an occasional writer.
func BenchmarkShardedMapParallel(b *testing.B) {
	runWithFleetSizes(b, FleetSizes, func(b *testing.B, size int) {
		m := cmap.New[string, *camera]()
		keys := make([]string, size)
		for i := range keys {
			c := newCamera(i)
			keys[i] = c.endpoint
			m.Set(c.endpoint, c)
		}

		b.ResetTimer()
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				key := keys[i%size]
				if i%16 == 0 {
					m.Set(key, newCamera(i))
				} else {
					m.Get(key)
				}
				i++
			}
		})
	})
}
