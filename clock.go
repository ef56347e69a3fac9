package fxfer

import "time"

// timeNow is the single indirection point for "current time" so tests
// can swap it; production code always sees the real clock.
var timeNow = time.Now
