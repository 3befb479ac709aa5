// Package handler implements the admin API of onvifmesh-server.
//
// Every JSON response uses the Response envelope. Errors carry the domain
// error code; the HTTP status is taken from the code's status digits.
package handler
