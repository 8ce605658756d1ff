// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"sync"
	"time"
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is an animated progress line.
//
// Description:
//
//	Only animates at PersonalityFull. Other levels print a single
//	"PROGRESS:" line on Start and each Update, so logs stay readable when
//	output is piped.
//
// Thread Safety:
//
//	Safe for concurrent use. Update may be called from pipeline observers.
type Spinner struct {
	p *Printer

	mu      sync.Mutex
	message string
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a stopped spinner.
func NewSpinner(p *Printer, message string) *Spinner {
	return &Spinner{p: p, message: message}
}

// Start begins the animation. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	if s.p.level != PersonalityFull {
		fmt.Fprintf(s.p.w, "PROGRESS: %s\n", s.message)
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate(s.stop, s.done)
}

func (s *Spinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	frame := 0
	for {
		select {
		case <-stop:
			fmt.Fprint(s.p.w, "\r\033[K")
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.p.w, "\r%s %s", Styles.Title.Render(spinnerFrames[frame]), msg)
			frame = (frame + 1) % len(spinnerFrames)
		}
	}
}

// Update replaces the message.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
	if s.running && s.p.level != PersonalityFull {
		fmt.Fprintf(s.p.w, "PROGRESS: %s\n", message)
	}
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// NodeFinished reports pipeline progress on the spinner line.
func (s *Spinner) NodeFinished(_ string, node string, d time.Duration, err error) {
	status := "done"
	if err != nil {
		status = "failed"
	}
	s.Update(fmt.Sprintf("%s %s (%s)", node, status, d.Round(time.Millisecond)))
}

// RunFinished stops the spinner.
func (s *Spinner) RunFinished(string, time.Duration, error) {
	s.Stop()
}
