package process

import "os"

// Windows has no SIGTERM for child processes.
var terminateSignal = os.Kill
