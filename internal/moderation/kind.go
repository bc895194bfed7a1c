package moderation

// ContentKind identifies the type of content carried by a ContentUnit.
//
//go:generate go tool enumer -type=ContentKind -trimprefix=ContentKind
type ContentKind int

const (
	ContentKindText ContentKind = iota
	ContentKindImage
	ContentKindVideoFrame
)
