// Package message implements dynamic message instances over sealed schema
// descriptors: typed, presence-tracking field storage, the binary encoding,
// unknown field retention, structural equality and conversion to plain Go
// maps.
//
// A Message is not safe for concurrent mutation. Many messages may share one
// descriptor, which is read-only once sealed.
package message
