// Package service provides the fleet service for onvifmesh.
//
// FleetService owns the device registry and drives every background
// workflow through the shared worker pool. Each workflow step is its own
// work item and follows the same discipline:
//
//  1. AddRef the device; abort if it has left the fleet.
//  2. Perform the protocol call.
//  3. Recheck validity; a stale result is discarded.
//  4. Publish the result to the presenter.
//  5. Unref the device.
//
// A rescan invalidates the previous scan and every registered device, so
// steps still in flight drain on their own without publishing.
package service
