// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// DefaultThreshold is the cosine distance below which a photo counts as a
// match when neither the config nor a flag sets one
const DefaultThreshold = 0.4

// ProgressNameWidth is the maximum file name length shown next to the progress bar
const ProgressNameWidth = 30
