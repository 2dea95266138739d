package logfields

import (
	"github.com/bottlerocket-os/swwatch/pkg/platform"
	"github.com/sirupsen/logrus"
)

func Worker(w platform.Worker) logrus.Fields {
	if w == nil {
		return logrus.Fields{"worker": nil}
	}
	return logrus.Fields{
		"worker": w.ID(),
		"state":  w.State(),
	}
}
