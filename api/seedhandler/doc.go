// Package seedhandler exposes the seed exchange provider over HTTP and
// provides the matching client for joining nodes.
package seedhandler
