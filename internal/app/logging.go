package app

import "github.com/sirupsen/logrus"

func componentLogger(logger *logrus.Entry, component string) *logrus.Entry {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return logger.WithField("component", component)
}
