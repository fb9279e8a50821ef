package lifecycle

import "time"

// timeNow is a package-level variable for testability.
// Tests replace it to control transition timestamps.
var timeNow = time.Now
