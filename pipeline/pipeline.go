// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package pipeline

// Send delivers item to the channel unless done is closed first. It reports
// whether the item was delivered; a false return means the consumer has gone
// away and the producer should stop.
func Send[T any](done <-chan struct{}, out chan<- T, item T) bool {
	select {
	case out <- item:
		return true
	case <-done:
		return false
	}
}

// OrDone wraps a channel so consumers can range over it without leaking the
// producer when done closes early.
func OrDone[T any](done <-chan struct{}, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case item, ok := <-in:
				if !ok {
					return
				}
				if !Send(done, out, item) {
					return
				}
			}
		}
	}()
	return out
}
