package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

// Signal coalesces change callbacks from the realtime services into a single
// pending wake-up. Notify never blocks, so it is safe to call from inside
// Update, where a blocking tea.Program.Send would deadlock.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify records that something changed.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait returns a command that blocks until the next Notify and then builds
// the message from current state.
func (s *Signal) Wait(build func() tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-s.ch
		return build()
	}
}

// ToastQueue is a realtime.Toaster that hands toasts to the UI. Toasts beyond
// the buffer are dropped.
type ToastQueue struct {
	ch chan realtime.Toast
}

var _ realtime.Toaster = (*ToastQueue)(nil)

func NewToastQueue() *ToastQueue {
	return &ToastQueue{ch: make(chan realtime.Toast, 16)}
}

func (q *ToastQueue) Toast(t realtime.Toast) {
	select {
	case q.ch <- t:
	default:
	}
}

// ToastMsg delivers one queued toast.
type ToastMsg struct {
	Toast realtime.Toast
}

// Wait returns a command that blocks until the next toast.
func (q *ToastQueue) Wait() tea.Cmd {
	return func() tea.Msg {
		return ToastMsg{Toast: <-q.ch}
	}
}
