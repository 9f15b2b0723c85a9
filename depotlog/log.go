// Package depotlog provides the structured logger passed to the sizer and the charge
// optimizer.
package depotlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger: text formatter with full timestamps, level taken from
// DEPOTSIM_LOG_LEVEL (default info).
func New() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level := os.Getenv("DEPOTSIM_LOG_LEVEL")
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// ForRun returns a child entry tagged with the identifying fields of one sizing/simulation run.
func ForRun(l *logrus.Logger, scenarioID, vehicleTypeID string, iteration int) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"scenario":     scenarioID,
		"vehicle_type": vehicleTypeID,
		"iteration":    iteration,
	})
}
