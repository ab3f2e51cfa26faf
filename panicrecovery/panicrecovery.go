// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package panicrecovery

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// panicChan carries panics recovered in producer goroutines back to the
// process-level handler so a wedged stream does not die silently.
var panicChan = make(chan error, 8)

// PanicRecovery converts a panic in a goroutine into an error on the shared
// panic channel. Deferred at the top of every streaming producer.
func PanicRecovery() {
	if recovery := recover(); recovery != nil {
		err := fmt.Errorf("panic recovered: %v\n%s", recovery, debug.Stack())
		select {
		case panicChan <- err:
		default:
			log.Error().Err(err).Msg("panic channel full, dropping recovered panic")
		}
	}
}

// HandleBubbledPanic logs recovered panics and invokes stop to cancel the
// run. It returns immediately; handling happens in the background.
func HandleBubbledPanic(done <-chan struct{}, stop func()) {
	go func() {
		for {
			select {
			case err := <-panicChan:
				log.Error().Err(err).Msg("goroutine panicked, shutting down")
				stop()
			case <-done:
				return
			}
		}
	}()
}
