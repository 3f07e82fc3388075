// Package vips is the libvips codec backend.
package vips

const Name = "vips"
