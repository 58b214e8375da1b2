// Package model defines data structure.
package model

// ChatMessage is the payload exchanged over the chat channel. It carries no
// sender or timestamp; it only lives as an in-flight event and a rendered item.
type ChatMessage string
