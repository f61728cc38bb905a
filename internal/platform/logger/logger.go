package logger

import (
	"log"
	"os"
)

// New returns a stdout logger shared across the process; swap in structured
// logging when operational requirements grow.
func New() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags)
}
