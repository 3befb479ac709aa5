// Package buildinfo reports the version of the running binary.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/onvifmesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When a value is not injected, the module build info embedded by the Go
// toolchain is used where it has one.
package buildinfo
