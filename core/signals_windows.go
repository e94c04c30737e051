package core

import "os"

var jobSignals = []os.Signal{os.Interrupt}
