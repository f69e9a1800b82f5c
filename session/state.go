package session

// State is the step a session is at.
//
// Previews go Idle -> Validating -> Rendering -> PreviewReady or Error,
// exports PreviewReady -> Encoding -> Archiving -> Downloading -> PreviewReady.
type State uint8

const (
	Idle State = iota
	Validating
	Rendering
	PreviewReady
	Encoding
	Archiving
	Downloading
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Validating:
		return "Validating"
	case Rendering:
		return "Rendering"
	case PreviewReady:
		return "PreviewReady"
	case Encoding:
		return "Encoding"
	case Archiving:
		return "Archiving"
	case Downloading:
		return "Downloading"
	case Error:
		return "Error"
	default:
		return "<unknown State>"
	}
}
