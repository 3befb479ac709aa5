// Package logger provides structured logging for onvifmesh.
//
// Records logged with a context carry its request ID, the workflow step
// and device it runs for, and the pool worker executing it. Device
// endpoints and stream URLs may carry user:password@ userinfo; the handler
// masks the password before anything is written.
package logger
